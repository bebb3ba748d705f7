package visiond

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// VideoCaptureCamera backs Camera with gocv's VideoCapture, opened and
// closed around each glance per spec.md §4.9 ("the camera is never
// held open between requests").
type VideoCaptureCamera struct {
	deviceIndex int
	width       int
	height      int

	cap *gocv.VideoCapture
	mat gocv.Mat
}

func NewVideoCaptureCamera(deviceIndex, width, height int) *VideoCaptureCamera {
	return &VideoCaptureCamera{deviceIndex: deviceIndex, width: width, height: height}
}

func (c *VideoCaptureCamera) Open() error {
	cap, err := gocv.OpenVideoCapture(c.deviceIndex)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoCamera, err)
	}
	cap.Set(gocv.VideoCaptureFrameWidth, float64(c.width))
	cap.Set(gocv.VideoCaptureFrameHeight, float64(c.height))
	c.cap = cap
	c.mat = gocv.NewMat()
	return nil
}

func (c *VideoCaptureCamera) Read() (image.Image, error) {
	if c.cap == nil {
		return nil, ErrNoCamera
	}
	if ok := c.cap.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, fmt.Errorf("visiond: camera read failed")
	}
	return c.mat.ToImage()
}

func (c *VideoCaptureCamera) Close() {
	if c.cap != nil {
		c.cap.Close()
		c.cap = nil
	}
	c.mat.Close()
}
