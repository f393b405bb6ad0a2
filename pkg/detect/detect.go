// Package detect locates faces in source photos. The production detector
// asks a chat-capable vision model for face bounding boxes and converts the
// normalized answer to pixel coordinates.
package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"regexp"
	"strings"

	"github.com/idphoto/passport-photo/internal/imageio"
	"github.com/idphoto/passport-photo/pkg/client"
	"github.com/idphoto/passport-photo/pkg/types"
)

// FaceDetector locates the primary face in an image. A nil box with a nil
// error means the detector ran and found no face.
type FaceDetector interface {
	DetectFace(ctx context.Context, img image.Image) (*types.BoundingBox, error)
}

// DefaultPrompt asks the model to locate faces as normalized boxes.
const DefaultPrompt = `You are a face locator for passport photo processing.

Return JSON only:
{
  "faces": [
    {"box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}, "confidence": 0.0}
  ]
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels).
- Each box must tightly enclose one human face from chin to hairline.
- List every clearly visible face; order does not matter.
- confidence is your certainty in [0,1].
- If no face is visible, return {"faces": []}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// maxModelDim limits the long side of the image sent to the model.
const maxModelDim = 1024

// Detector finds faces using a vision model backend.
type Detector struct {
	client client.VisionClient
	model  string
	prompt string
}

// NewDetector creates a detector for the given vision client and model name.
func NewDetector(c client.VisionClient, model string) *Detector {
	return &Detector{client: c, model: model, prompt: DefaultPrompt}
}

// faceResult mirrors the JSON the prompt requests.
type faceResult struct {
	Faces []struct {
		Box        types.Box `json:"box"`
		Confidence float64   `json:"confidence"`
	} `json:"faces"`
}

// DetectFace returns the largest detected face in pixel coordinates, or
// (nil, nil) when the model reports no face.
func (d *Detector) DetectFace(ctx context.Context, img image.Image) (*types.BoundingBox, error) {
	imgB64, err := imageio.EncodeForModel(img, maxModelDim, 90)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image for model: %v", err)
	}

	raw, err := d.client.Query(ctx, d.model, d.prompt, imgB64)
	if err != nil {
		return nil, fmt.Errorf("vision model query failed: %w", err)
	}

	result, err := parseFaceResult(raw)
	if err != nil {
		return nil, err
	}
	if len(result.Faces) == 0 {
		return nil, nil
	}

	b := img.Bounds()
	var best *types.BoundingBox
	for _, f := range result.Faces {
		box := f.Box.ToPixels(b.Dx(), b.Dy())
		box.Confidence = f.Confidence
		if box.Width <= 0 || box.Height <= 0 {
			continue
		}
		if best == nil || box.Area() > best.Area() {
			candidate := box
			best = &candidate
		}
	}
	return best, nil
}

// parseFaceResult parses the JSON response from the vision model.
func parseFaceResult(raw string) (*faceResult, error) {
	raw = sanitizeModelJSON(raw)

	if !strings.HasPrefix(raw, "{") {
		return nil, fmt.Errorf("model returned non-JSON response")
	}

	var result faceResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		// Try conservative brace-slice approach
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start >= 0 && end > start {
			if err2 := json.Unmarshal([]byte(raw[start:end+1]), &result); err2 != nil {
				return nil, fmt.Errorf("failed to parse model response: %v", err2)
			}
		} else {
			return nil, fmt.Errorf("failed to parse model response: %v", err)
		}
	}
	return &result, nil
}

// sanitizeModelJSON removes code fences, comments, and trailing commas from JSON response
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	// Remove /* ... */ block comments
	reBlock := regexp.MustCompile(`(?s)/\*.*?\*/`)
	raw = reBlock.ReplaceAllString(raw, "")

	// Remove // line/inline comments
	reLine := regexp.MustCompile(`(?m)^\s*//.*$`)
	raw = reLine.ReplaceAllString(raw, "")
	reInline := regexp.MustCompile(`(?m)//.*$`)
	raw = reInline.ReplaceAllString(raw, "")

	// Remove trailing commas before } or ]
	reTrailing := regexp.MustCompile(`,(\s*[}\]])`)
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
