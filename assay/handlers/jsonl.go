package handlers

import (
	"bufio"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/justapithecus/assay/assay"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

const maxFrameSize = 10 * 1024 * 1024 // 10MB per frame line

// JSONLFrames handles frame-per-line JSON Lines resources: line i of
// the file is frame i.
//
// Open kwargs:
//   - compressor (string, optional): "gzip" or "zstd"; sniffed from
//     the path extension when omitted.
//
// Retrieval kwargs:
//   - frame (integer): zero-based frame index.
var JSONLFrames = assay.HandlerType{Name: "JSONLFrames", New: NewJSONLFrames}

// jsonlFrames keeps the decoded frames resident so repeated datum
// retrievals against the same resource cost one file read.
type jsonlFrames struct {
	frames []any
	closed bool
}

// NewJSONLFrames opens a JSONL resource and decodes every frame.
func NewJSONLFrames(path string, kwargs assay.Kwargs) (assay.Handler, error) {
	compressor, err := stringKwarg(kwargs, "compressor", "")
	if err != nil {
		return nil, err
	}
	rc, err := openDecompressed(path, compressor)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	var frames []any
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var frame any
		if err := jsonCodec.Unmarshal(line, &frame); err != nil {
			return nil, fmt.Errorf("handlers: %s line %d: %w", path, len(frames)+1, err)
		}
		frames = append(frames, frame)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return &jsonlFrames{frames: frames}, nil
}

func (h *jsonlFrames) Retrieve(kwargs assay.Kwargs) (any, error) {
	if h.closed {
		return nil, ErrClosed
	}
	frame, err := intKwarg(kwargs, "frame")
	if err != nil {
		return nil, err
	}
	if frame < 0 || frame >= len(h.frames) {
		return nil, fmt.Errorf("handlers: frame %d out of range [0, %d)", frame, len(h.frames))
	}
	return h.frames[frame], nil
}

func (h *jsonlFrames) Close() error {
	h.frames = nil
	h.closed = true
	return nil
}
