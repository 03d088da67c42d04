package models

import (
	"encoding/json"
	"fmt"
)

// GenerationKind discriminates the generation parameter variants.
type GenerationKind string

const (
	KindImage GenerationKind = "image"
	KindVideo GenerationKind = "video"
)

// ImageParams are the tunables for still-image generation.
type ImageParams struct {
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	Steps         int     `json:"steps,omitempty"`
	GuidanceScale float64 `json:"guidance_scale,omitempty"`
	Style         string  `json:"style,omitempty"`
}

// VideoParams are the tunables for video generation.
type VideoParams struct {
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	DurationSeconds float64 `json:"duration_seconds"`
	FPS             int     `json:"fps,omitempty"`
	Loop            bool    `json:"loop,omitempty"`
}

// GenerationParams is a tagged union: exactly one of Image or Video is set,
// matching Kind. The wire shape is {"kind":"image","image":{...}} or
// {"kind":"video","video":{...}}.
type GenerationParams struct {
	Kind  GenerationKind
	Image *ImageParams
	Video *VideoParams
}

type generationParamsJSON struct {
	Kind  GenerationKind `json:"kind"`
	Image *ImageParams   `json:"image,omitempty"`
	Video *VideoParams   `json:"video,omitempty"`
}

// Validate checks that the variant matches the kind tag.
func (p GenerationParams) Validate() error {
	switch p.Kind {
	case KindImage:
		if p.Image == nil {
			return fmt.Errorf("params kind %q requires an image variant", p.Kind)
		}
		if p.Video != nil {
			return fmt.Errorf("params kind %q must not carry a video variant", p.Kind)
		}
	case KindVideo:
		if p.Video == nil {
			return fmt.Errorf("params kind %q requires a video variant", p.Kind)
		}
		if p.Image != nil {
			return fmt.Errorf("params kind %q must not carry an image variant", p.Kind)
		}
	default:
		return fmt.Errorf("unknown params kind %q", p.Kind)
	}
	return nil
}

func (p GenerationParams) MarshalJSON() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(generationParamsJSON{Kind: p.Kind, Image: p.Image, Video: p.Video})
}

func (p *GenerationParams) UnmarshalJSON(data []byte) error {
	var raw generationParamsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := GenerationParams{Kind: raw.Kind, Image: raw.Image, Video: raw.Video}
	if err := out.Validate(); err != nil {
		return err
	}
	*p = out
	return nil
}
