package generator

import (
	"errors"
	"fmt"
)

// ErrContentPolicy は、リモート側のコンテンツフィルタ（NSFW 誤検知など）による拒否を表します。
// 一時的な失敗として扱い、パイプライン側でリトライします。
var ErrContentPolicy = errors.New("content policy rejection")

// RemoteGenerationError はリモート生成呼び出しの失敗です。
type RemoteGenerationError struct {
	Backend       string
	StatusCode    int  // HTTP ステータス。トランスポート層で失敗した場合は 0
	ContentPolicy bool // コンテンツフィルタによる拒否かどうか
	Message       string
	Err           error
}

func (e *RemoteGenerationError) Error() string {
	msg := fmt.Sprintf("%s: remote generation failed", e.Backend)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.ContentPolicy {
		msg += " [content policy]"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RemoteGenerationError) Unwrap() error {
	return e.Err
}

// Is により errors.Is(err, ErrContentPolicy) でコンテンツフィルタ拒否を判定できます。
func (e *RemoteGenerationError) Is(target error) bool {
	return target == ErrContentPolicy && e.ContentPolicy
}

// IsContentPolicy は err がリトライ対象のコンテンツフィルタ拒否かどうかを返します。
func IsContentPolicy(err error) bool {
	return errors.Is(err, ErrContentPolicy)
}
