package registry

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/Skufu/GoCyto/internal/diagnosis"
)

// tensorMeta is one entry of a safetensors header.
type tensorMeta struct {
	Dtype       string `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets [2]int `json:"data_offsets"`
}

// safetensors is a parsed file: the JSON header and the byte buffer that
// follows it.
type safetensors struct {
	header map[string]json.RawMessage
	body   []byte
}

func readSafetensors(path string) (*safetensors, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("safetensors: %w", err)
	}
	if len(data) < 8 {
		return nil, fmt.Errorf("safetensors: %s: file too small: %d bytes", path, len(data))
	}
	// 8-byte little endian header length, then the JSON header.
	headerLen := binary.LittleEndian.Uint64(data[:8])
	if uint64(len(data))-8 < headerLen {
		return nil, fmt.Errorf("safetensors: %s: header length %d exceeds file size", path, headerLen)
	}
	var header map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerLen], &header); err != nil {
		return nil, fmt.Errorf("safetensors: %s: parse header: %w", path, err)
	}
	return &safetensors{header: header, body: data[8+headerLen:]}, nil
}

// tensor decodes a named F32 or F64 tensor into float64 values.
func (st *safetensors) tensor(name string) ([]float64, []int, error) {
	raw, ok := st.header[name]
	if !ok {
		return nil, nil, fmt.Errorf("safetensors: tensor %q not found", name)
	}
	var meta tensorMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, nil, fmt.Errorf("safetensors: tensor %q metadata: %w", name, err)
	}

	var width int
	switch meta.Dtype {
	case "F32":
		width = 4
	case "F64":
		width = 8
	default:
		return nil, nil, fmt.Errorf("safetensors: tensor %q has dtype %s, want F32 or F64", name, meta.Dtype)
	}

	n := 1
	for _, d := range meta.Shape {
		if d < 0 {
			return nil, nil, fmt.Errorf("safetensors: tensor %q has negative dimension in shape %v", name, meta.Shape)
		}
		n *= d
	}
	start, end := meta.DataOffsets[0], meta.DataOffsets[1]
	if start < 0 || start > end || end > len(st.body) || end-start != n*width {
		return nil, nil, fmt.Errorf("safetensors: tensor %q data range [%d:%d] does not fit shape %v",
			name, start, end, meta.Shape)
	}

	buf := st.body[start:end]
	out := make([]float64, n)
	for i := range out {
		if width == 4 {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:])))
		} else {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
		}
	}
	return out, meta.Shape, nil
}

// loadSafetensorsSoftmax reads a torch linear layer: "linear.weight" of
// shape [classes, features] and "linear.bias" of shape [classes].
func loadSafetensorsSoftmax(src Source) (*diagnosis.Model, error) {
	if src.ScalerPath == "" {
		return nil, fmt.Errorf("registry: %s: safetensors artifacts need a scaler path", src.Variant)
	}
	st, err := readSafetensors(src.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	w, shape, err := st.tensor("linear.weight")
	if err != nil {
		return nil, fmt.Errorf("registry: %s: %w", src.ModelPath, err)
	}
	if len(shape) != 2 {
		return nil, fmt.Errorf("registry: %s: linear.weight has shape %v, want 2D", src.ModelPath, shape)
	}
	bias, bshape, err := st.tensor("linear.bias")
	if err != nil {
		return nil, fmt.Errorf("registry: %s: %w", src.ModelPath, err)
	}
	if len(bshape) != 1 || bshape[0] != shape[0] {
		return nil, fmt.Errorf("registry: %s: linear.bias has shape %v, want [%d]", src.ModelPath, bshape, shape[0])
	}

	classes, in := shape[0], shape[1]
	rows := make([][]float64, classes)
	for c := range rows {
		rows[c] = w[c*in : (c+1)*in]
	}
	clf, err := diagnosis.NewSoftmax(rows, bias)
	if err != nil {
		return nil, fmt.Errorf("registry: %s: %w", src.ModelPath, err)
	}

	scaler, err := loadScaler(src.ScalerPath)
	if err != nil {
		return nil, err
	}
	m, err := diagnosis.NewModel(src.Variant, st.metadata()["version"], scaler, clf)
	if err != nil {
		return nil, fmt.Errorf("registry: %s: %w", src.ModelPath, err)
	}
	return m, nil
}

// metadata returns the optional "__metadata__" string map.
func (st *safetensors) metadata() map[string]string {
	raw, ok := st.header["__metadata__"]
	if !ok {
		return nil
	}
	var md map[string]string
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil
	}
	return md
}
