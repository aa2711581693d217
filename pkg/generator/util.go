package generator

import (
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

func dereferenceSeed(s *int64) int64 {
	if s == nil {
		return 0
	}
	return *s
}

// dataURI は画像データを Replicate が受け付ける data URI に変換するのだ。
func dataURI(data []byte) string {
	return "data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// IsSafeURL は、SSRF 対策として取得先の URL を検証します。
// http(s) 以外のスキームと、内部ネットワークに解決されるホストを拒否します。
func IsSafeURL(rawURL string) (bool, error) {
	u, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return false, fmt.Errorf("URLパース失敗: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false, fmt.Errorf("不許可スキーム: %s", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return false, fmt.Errorf("ホストがありません: %s", rawURL)
	}

	var ips []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ips = []net.IP{ip}
	} else if ips, err = net.LookupIP(host); err != nil {
		return false, fmt.Errorf("ホスト '%s' の名前解決に失敗しました: %w", host, err)
	}

	for _, ip := range ips {
		if restricted(ip) {
			return false, fmt.Errorf("制限されたネットワークへのアクセスを検知: %s", ip)
		}
	}
	return true, nil
}

func restricted(ip net.IP) bool {
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast()
}
