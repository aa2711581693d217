package variant

import "github.com/shouni/panorama-kit/pkg/domain"

func size(w, h int) domain.Size { return domain.Size{Width: w, Height: h} }

// Builtins は組み込みのバリアント一覧を返します。呼び出しごとに新しいスライスを返します。
func Builtins() []Variant {
	return []Variant{
		{
			Name:        "stability-sd-inpainting",
			Description: "Stable Diffusion inpainting, 768x512 canvas, 256px extension",
			Backend:     BackendReplicate,
			Model:       "stability-ai/stable-diffusion-inpainting",
			Version:     "95b7223104132402a9ae91cc677285bc5eb997834bd2349fa486f53910fd68b3",
			Geometry: domain.SegmentGeometry{
				SeedSize:       size(512, 512),
				CanvasSize:     size(768, 512),
				OutputSize:     size(768, 512),
				ExtensionWidth: 256,
				Mode:           domain.ModeMask,
			},
			Params: map[string]any{
				"num_inference_steps": 35,
				"guidance_scale":      7.5,
				"negative_prompt":     "blurry, distorted, low quality, artifacts, discontinuous",
				"num_outputs":         1,
			},
			SizeParams: true,
		},
		{
			Name:        "stability-inpainting",
			Description: "simbrams/ri inpainting, 896x512 canvas, 384px extension",
			Backend:     BackendReplicate,
			Model:       "simbrams/ri",
			Version:     "1713fdec48707483a50e950ae63212c59293e6abff8abd1834c911b75b881d70",
			Geometry: domain.SegmentGeometry{
				SeedSize:       size(512, 512),
				CanvasSize:     size(896, 512),
				OutputSize:     size(896, 512),
				ExtensionWidth: 384,
				Mode:           domain.ModeMask,
			},
			Params: map[string]any{
				"negative_prompt": "hard edges",
				"strength":        0.95,
				"blur_mask":       true,
				"blur_radius":     50,
				"dilation_factor": 4,
				"guidance_scale":  5.5,
				"steps":           35,
				"upscale_factor":  1,
				"do_resize":       false,
				"merge_m_s":       true,
			},
		},
		{
			Name:        "flux-fill",
			Description: "FLUX.1 Fill Pro, 768x512 canvas, 256px extension",
			Backend:     BackendReplicate,
			Model:       "black-forest-labs/flux-fill-pro",
			Geometry: domain.SegmentGeometry{
				SeedSize:       size(512, 512),
				CanvasSize:     size(768, 512),
				OutputSize:     size(768, 512),
				ExtensionWidth: 256,
				Mode:           domain.ModeMask,
			},
			Params: map[string]any{
				"output_format":     "png",
				"safety_tolerance":  2,
				"prompt_upsampling": false,
				"guidance":          30,
				"steps":             28,
			},
		},
		{
			Name:        "sdxl-outpainting",
			Description: "SDXL outpainting LoRA, seed-only request extended 256px to the right",
			Backend:     BackendReplicate,
			Model:       "fermatresearch/sdxl-outpainting-lora",
			Version:     "a542ccf352995f3c41f0bcfaef641daa3058bf2b00e08e04feb0295334ab9804",
			Geometry: domain.SegmentGeometry{
				SeedSize:       size(512, 512),
				CanvasSize:     size(512, 512),
				OutputSize:     size(768, 512),
				ExtensionWidth: 256,
				Mode:           domain.ModeSeed,
			},
			Params: map[string]any{
				"outpaint_left":   0,
				"outpaint_right":  256,
				"outpaint_up":     0,
				"outpaint_down":   0,
				"guidance_scale":  7.5,
				"condition_scale": 0.5,
				"lora_scale":      0.8,
				"num_outputs":     1,
				"apply_watermark": false,
				"negative_prompt": "",
			},
		},
		{
			Name:        "sdxl-inpainting",
			Description: "SDXL inpainting, 512x512 canvas preserving a 256px seed",
			Backend:     BackendReplicate,
			Model:       "lucataco/sdxl-inpainting",
			Version:     "a5b13068cc81a89a4fbeefeccc774869fcb34df4dbc92c1555e0f2771d49dde7",
			Geometry: domain.SegmentGeometry{
				SeedSize:       size(256, 512),
				CanvasSize:     size(512, 512),
				OutputSize:     size(512, 512),
				ExtensionWidth: 256,
				Mode:           domain.ModeMask,
			},
			Params: map[string]any{
				"negative_prompt": "blurry, distorted, low quality, artifacts, inconsistent lighting, discontinuous, fragmented",
				"guidance_scale":  8,
				"steps":           50,
				"strength":        0.95,
				"scheduler":       "K_EULER",
			},
		},
		{
			Name:        "gemini-outpainting",
			Description: "Gemini image model with canvas and mask parts, output normalized to 768x512",
			Backend:     BackendGemini,
			Geometry: domain.SegmentGeometry{
				SeedSize:       size(512, 512),
				CanvasSize:     size(768, 512),
				OutputSize:     size(768, 512),
				ExtensionWidth: 256,
				Mode:           domain.ModeMask,
			},
		},
	}
}
