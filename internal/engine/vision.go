package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"github.com/MeKo-Tech/docverify/internal/detection"
	"github.com/MeKo-Tech/docverify/internal/utils"
)

// VisionConfig selects credentials for the Cloud Vision backend. Empty fields
// fall back to GOOGLE_CREDENTIALS, GOOGLE_APPLICATION_CREDENTIALS and then
// the default credential chain.
type VisionConfig struct {
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file" json:"credentials_file"`
	CredentialsJSON string `mapstructure:"credentials_json" yaml:"credentials_json" json:"-"`
}

type annotator interface {
	annotate(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

type visionClient struct{ c *vision.ImageAnnotatorClient }

func (v visionClient) annotate(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
	return v.c.BatchAnnotateImages(ctx, req)
}

func (v visionClient) Close() error { return v.c.Close() }

// Vision is the Google Cloud Vision backend.
type Vision struct {
	client annotator
}

// NewVision connects to Cloud Vision.
func NewVision(ctx context.Context, cfg VisionConfig) (*Vision, error) {
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case os.Getenv("GOOGLE_CREDENTIALS") != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(os.Getenv("GOOGLE_CREDENTIALS"))))
	case os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "":
		opts = append(opts, option.WithCredentialsFile(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")))
	}
	c, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: vision client: %w", ErrBackendUnavailable, err)
	}
	return &Vision{client: visionClient{c}}, nil
}

// Name implements Engine.
func (v *Vision) Name() string { return BackendVision }

// ReadText sends img for text detection. Beam-search passes request dense
// document detection instead.
func (v *Vision) ReadText(ctx context.Context, img image.Image, pass PassConfig) ([]detection.Detection, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	feature := visionpb.Feature_TEXT_DETECTION
	if pass.BeamSearch() {
		feature = visionpb.Feature_DOCUMENT_TEXT_DETECTION
	}
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:        &visionpb.Image{Content: buf.Bytes()},
			Features:     []*visionpb.Feature{{Type: feature}},
			ImageContext: &visionpb.ImageContext{LanguageHints: pass.Languages},
		}},
	}
	resp, err := v.client.annotate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vision request failed: %w", err)
	}
	if len(resp.GetResponses()) == 0 {
		return nil, errors.New("empty vision response")
	}
	r := resp.GetResponses()[0]
	if r.GetError() != nil {
		return nil, fmt.Errorf("vision error: %s", r.GetError().GetMessage())
	}
	return visionDetections(r, pass.Name), nil
}

// visionDetections maps word annotations to detections. The first text
// annotation is the whole page and is skipped. Confidence comes from the
// matching word of the full text annotation when the counts line up.
func visionDetections(r *visionpb.AnnotateImageResponse, pass string) []detection.Detection {
	anns := r.GetTextAnnotations()
	if len(anns) < 2 {
		return nil
	}
	words := anns[1:]
	confs := wordConfidences(r.GetFullTextAnnotation())
	if len(confs) != len(words) {
		confs = nil
	}

	out := make([]detection.Detection, 0, len(words))
	for i, a := range words {
		verts := a.GetBoundingPoly().GetVertices()
		if len(verts) != 4 {
			continue
		}
		pts := make([]utils.Point, 4)
		for j, vt := range verts {
			pts[j] = utils.Point{X: float64(vt.GetX()), Y: float64(vt.GetY())}
		}
		q, err := detection.QuadFromPoints(pts)
		if err != nil {
			continue
		}
		conf := 1.0
		if confs != nil {
			conf = confs[i]
		} else if c := a.GetConfidence(); c > 0 {
			conf = float64(c)
		}
		out = append(out, detection.Detection{Box: q, Text: a.GetDescription(), Confidence: conf, Pass: pass})
	}
	return out
}

func wordConfidences(full *visionpb.TextAnnotation) []float64 {
	var out []float64
	for _, page := range full.GetPages() {
		for _, block := range page.GetBlocks() {
			for _, para := range block.GetParagraphs() {
				for _, w := range para.GetWords() {
					c := float64(w.GetConfidence())
					if c <= 0 {
						c = 1
					}
					out = append(out, c)
				}
			}
		}
	}
	return out
}

// Close releases the client.
func (v *Vision) Close() error {
	if v.client == nil {
		return nil
	}
	return v.client.Close()
}
