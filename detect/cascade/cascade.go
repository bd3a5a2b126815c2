//go:build gocv

// Package cascade detects faces with an OpenCV Haar cascade.
package cascade

import (
	"image"

	"github.com/noriah/pulsecat/detect"
	"github.com/noriah/pulsecat/frame"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

func init() {
	detect.Register("cascade", func(o detect.Options) (detect.Detector, error) {
		return New(o.Cascade)
	})
}

// Detector runs the classifier over the region and reports the largest hit.
type Detector struct {
	classifier gocv.CascadeClassifier
}

// New loads the classifier from file, for example
// haarcascade_frontalface_default.xml.
func New(file string) (*Detector, error) {
	if file == "" {
		return nil, errors.New("cascade detector needs a classifier file")
	}

	c := gocv.NewCascadeClassifier()
	if !c.Load(file) {
		c.Close()
		return nil, errors.Errorf("failed to load cascade %q", file)
	}

	return &Detector{classifier: c}, nil
}

func (d *Detector) Detect(f *frame.Frame, r image.Rectangle) (bool, image.Rectangle) {
	mat, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Pix)
	if err != nil {
		return false, r
	}
	defer mat.Close()

	roi := mat.Region(r)
	defer roi.Close()

	var best image.Rectangle
	for _, hit := range d.classifier.DetectMultiScale(roi) {
		if hit.Dx()*hit.Dy() > best.Dx()*best.Dy() {
			best = hit
		}
	}

	if best.Empty() {
		return false, r
	}

	return true, best.Add(r.Min)
}

func (d *Detector) Close() error {
	return d.classifier.Close()
}
