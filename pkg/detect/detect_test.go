package detect

import (
	"context"
	"errors"
	"image"
	"testing"
)

type fakeVisionClient struct {
	response string
	err      error
	prompt   string
	imgB64   string
}

func (f *fakeVisionClient) Query(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	f.prompt = prompt
	f.imgB64 = imgB64
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func testImage() image.Image {
	return image.NewNRGBA(image.Rect(0, 0, 1200, 1600))
}

func TestDetectFace(t *testing.T) {
	fake := &fakeVisionClient{
		response: `{"faces": [{"box": {"x": 0.25, "y": 0.1875, "w": 0.25, "h": 0.1875}, "confidence": 0.93}]}`,
	}
	d := NewDetector(fake, "test-model")

	face, err := d.DetectFace(context.Background(), testImage())
	if err != nil {
		t.Fatalf("DetectFace failed: %v", err)
	}
	if face == nil {
		t.Fatal("expected a face")
	}
	if face.X != 300 || face.Y != 300 || face.Width != 300 || face.Height != 300 {
		t.Errorf("face = %+v, want {300 300 300 300}", face)
	}
	if face.Confidence != 0.93 {
		t.Errorf("confidence = %f, want 0.93", face.Confidence)
	}
	if fake.imgB64 == "" {
		t.Error("model should receive the encoded image")
	}
}

func TestDetectFacePicksLargest(t *testing.T) {
	fake := &fakeVisionClient{
		response: `{"faces": [
			{"box": {"x": 0.0, "y": 0.0, "w": 0.1, "h": 0.1}, "confidence": 0.9},
			{"box": {"x": 0.3, "y": 0.3, "w": 0.4, "h": 0.4}, "confidence": 0.8},
			{"box": {"x": 0.7, "y": 0.7, "w": 0.2, "h": 0.2}, "confidence": 0.95}
		]}`,
	}
	d := NewDetector(fake, "test-model")

	face, err := d.DetectFace(context.Background(), testImage())
	if err != nil {
		t.Fatalf("DetectFace failed: %v", err)
	}
	if face == nil {
		t.Fatal("expected a face")
	}
	if face.Width != 480 {
		t.Errorf("width = %d, want 480 (the largest box)", face.Width)
	}
}

func TestDetectFaceNoFaces(t *testing.T) {
	fake := &fakeVisionClient{response: `{"faces": []}`}
	d := NewDetector(fake, "test-model")

	face, err := d.DetectFace(context.Background(), testImage())
	if err != nil {
		t.Fatalf("DetectFace failed: %v", err)
	}
	if face != nil {
		t.Errorf("expected nil face, got %+v", face)
	}
}

func TestDetectFaceClientError(t *testing.T) {
	wantErr := errors.New("model offline")
	d := NewDetector(&fakeVisionClient{err: wantErr}, "test-model")

	_, err := d.DetectFace(context.Background(), testImage())
	if err == nil {
		t.Fatal("expected error when the client fails")
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("error should wrap the client failure, got %v", err)
	}
}

func TestDetectFaceFencedJSON(t *testing.T) {
	fake := &fakeVisionClient{
		response: "```json\n{\"faces\": [{\"box\": {\"x\": 0.1, \"y\": 0.1, \"w\": 0.5, \"h\": 0.5}, \"confidence\": 0.7}]}\n```",
	}
	d := NewDetector(fake, "test-model")

	face, err := d.DetectFace(context.Background(), testImage())
	if err != nil {
		t.Fatalf("DetectFace failed: %v", err)
	}
	if face == nil {
		t.Fatal("expected a face from fenced JSON")
	}
}

func TestDetectFaceNonJSON(t *testing.T) {
	fake := &fakeVisionClient{response: "I see a person in the photo."}
	d := NewDetector(fake, "test-model")

	if _, err := d.DetectFace(context.Background(), testImage()); err == nil {
		t.Fatal("expected error for non-JSON response")
	}
}

func TestDetectFaceSkipsDegenerateBoxes(t *testing.T) {
	fake := &fakeVisionClient{
		response: `{"faces": [{"box": {"x": 0.5, "y": 0.5, "w": 0.0, "h": 0.0}, "confidence": 0.9}]}`,
	}
	d := NewDetector(fake, "test-model")

	face, err := d.DetectFace(context.Background(), testImage())
	if err != nil {
		t.Fatalf("DetectFace failed: %v", err)
	}
	if face != nil {
		t.Errorf("zero-size boxes should be discarded, got %+v", face)
	}
}

func TestSanitizeModelJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"faces": []}`, `{"faces": []}`},
		{"fenced", "```json\n{\"faces\": []}\n```", `{"faces": []}`},
		{"trailing comma", `{"faces": [],}`, `{"faces": []}`},
		{"surrounding prose", `Here you go: {"faces": []} hope that helps`, `{"faces": []}`},
		{"line comment", "{\n// none found\n\"faces\": []}", "{\n\n\"faces\": []}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeModelJSON(tt.in); got != tt.want {
				t.Errorf("sanitizeModelJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
