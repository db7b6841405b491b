package ai

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"muzzlewatch/internal/config"
	"muzzlewatch/internal/detection"
	"muzzlewatch/internal/detection/yolo"
	"muzzlewatch/internal/logger"
)

const (
	// InputSize is the square network input resolution.
	InputSize = 640
	// NMSThreshold is the IoU above which overlapping boxes of one class are merged.
	NMSThreshold = 0.45
)

// DetectorService runs a YOLO ONNX model through the OpenCV DNN module.
type DetectorService struct {
	net       gocv.Net
	ready     bool
	modelPath string
	labels    detection.LabelTable
	logger    *logger.Logger
	mu        sync.Mutex
}

var _ detection.Detector = (*DetectorService)(nil)

// NewDetectorService creates a detector and loads the network once.
// A missing model is logged; Infer then reports an error for every image.
func NewDetectorService(cfg *config.Config, logger *logger.Logger) *DetectorService {
	service := &DetectorService{
		modelPath: cfg.ModelPath,
		labels:    detection.ParseLabels(cfg.Labels),
		logger:    logger,
	}

	if err := service.initializeNet(); err != nil {
		service.logger.Warning("Could not initialize detection network: %v", err)
		return service
	}

	return service
}

// initializeNet loads the DNN network and sets backend/target preferences.
func (s *DetectorService) initializeNet() error {
	if _, err := os.Stat(s.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", s.modelPath)
	}

	net := gocv.ReadNetFromONNX(s.modelPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network")
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)

	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	s.net = net
	s.ready = true
	s.logger.Info("Detection network initialized successfully: %s", s.modelPath)
	return nil
}

// Infer runs the network on the image at imagePath and returns boxes in
// source image pixels.
func (s *DetectorService) Infer(ctx context.Context, imagePath string, confidenceThreshold float64) (detection.RawOutput, error) {
	if err := ctx.Err(); err != nil {
		return detection.RawOutput{}, err
	}
	if !s.ready {
		return detection.RawOutput{}, fmt.Errorf("detection network not initialized")
	}

	mat := gocv.IMRead(imagePath, gocv.IMReadColor)
	defer mat.Close()
	if mat.Empty() {
		return detection.RawOutput{}, fmt.Errorf("failed to read image %s", imagePath)
	}

	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(InputSize, InputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	// gocv.Net is not safe for concurrent Forward calls.
	s.mu.Lock()
	s.net.SetInput(blob, "")
	output := s.net.Forward("")
	s.mu.Unlock()
	defer output.Close()

	candidates, err := s.decode(output, confidenceThreshold, yolo.Layout{
		InputWidth:  InputSize,
		InputHeight: InputSize,
		ImageWidth:  mat.Cols(),
		ImageHeight: mat.Rows(),
	})
	if err != nil {
		return detection.RawOutput{}, err
	}

	out := detection.RawOutput{Labels: s.labels}
	for _, c := range candidates {
		out.Boxes = append(out.Boxes, c.Box)
		out.Confidences = append(out.Confidences, c.Confidence)
		out.ClassIDs = append(out.ClassIDs, c.ClassID)
	}
	s.logger.Info("Detected %d objects in %s", len(candidates), imagePath)
	return out, nil
}

// decode handles both the classic [1, 4+classes, anchors] head (followed by
// NMS) and the NMS-free [1, rows, 6] head.
func (s *DetectorService) decode(output gocv.Mat, threshold float64, layout yolo.Layout) ([]yolo.Candidate, error) {
	sizes := output.Size()
	if len(sizes) != 3 {
		return nil, fmt.Errorf("unexpected output shape %v", sizes)
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read output tensor: %w", err)
	}

	if sizes[2] == 6 && sizes[1] > 6 {
		return yolo.DecodeEndToEnd(data, sizes[1], threshold, layout)
	}

	candidates, err := yolo.Decode(data, sizes[1]-4, sizes[2], threshold, layout)
	if err != nil {
		return nil, err
	}
	return yolo.Suppress(candidates, NMSThreshold), nil
}

// Close releases the network.
func (s *DetectorService) Close() error {
	if !s.ready {
		return nil
	}
	s.ready = false
	return s.net.Close()
}
