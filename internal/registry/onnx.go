package registry

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Skufu/GoCyto/internal/diagnosis"
	"github.com/Skufu/GoCyto/internal/features"
)

// probabilitiesOutput is the output name exporters give the class
// probability tensor.
const probabilitiesOutput = "probabilities"

// maxFloat32Input bounds inputs before the float32 conversion so the
// network's own arithmetic stays finite.
const maxFloat32Input = 1e18

// ortEnv is the process-wide ONNX Runtime environment.
var ortEnv struct {
	once sync.Once
	err  error
}

func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// onnxClassifier runs a fitted network exported to ONNX. The input is a
// float32 row of shape [1, features]; the output is [1, classes].
type onnxClassifier struct {
	session *ort.DynamicAdvancedSession
	classes int64
}

var _ io.Closer = (*onnxClassifier)(nil)

func loadONNXMLP(src Source, opts Options) (*diagnosis.Model, io.Closer, error) {
	if src.ScalerPath == "" {
		return nil, nil, fmt.Errorf("registry: %s: onnx artifacts need a scaler path", src.Variant)
	}
	// Fail on a missing artifact before touching the native runtime.
	if _, err := os.Stat(src.ModelPath); err != nil {
		return nil, nil, fmt.Errorf("registry: %s: %w", src.Variant, err)
	}
	scaler, err := loadScaler(src.ScalerPath)
	if err != nil {
		return nil, nil, err
	}

	libPath := opts.ONNXRuntimeLib
	if libPath == "" {
		libPath = filepath.Join(filepath.Dir(src.ModelPath), "libonnxruntime.so")
	}
	if err := initORT(libPath); err != nil {
		return nil, nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	clf, err := newONNXClassifier(src.ModelPath)
	if err != nil {
		return nil, nil, err
	}
	m, err := diagnosis.NewModel(src.Variant, filepath.Base(src.ModelPath), scaler, clf)
	if err != nil {
		clf.Close()
		return nil, nil, fmt.Errorf("registry: %s: %w", src.ModelPath, err)
	}
	return m, clf, nil
}

func newONNXClassifier(modelPath string) (*onnxClassifier, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("onnx: expected one input tensor, got %d", len(inputs))
	}
	if dims := inputs[0].Dimensions; len(dims) != 2 || dims[1] != features.Count {
		return nil, fmt.Errorf("onnx: input %q has shape %v, want [batch, %d]",
			inputs[0].Name, dims, features.Count)
	}

	out, err := pickProbabilities(outputs)
	if err != nil {
		return nil, err
	}
	if dims := out.Dimensions; len(dims) == 2 && dims[1] > 0 && dims[1] != 2 {
		return nil, fmt.Errorf("onnx: output %q has %d classes, want 2", out.Name, dims[1])
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	opts.SetIntraOpNumThreads(1)
	opts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{inputs[0].Name},
		[]string{out.Name},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}
	return &onnxClassifier{session: session, classes: 2}, nil
}

// pickProbabilities prefers the conventionally named probability output and
// otherwise takes the only output.
func pickProbabilities(outputs []ort.InputOutputInfo) (ort.InputOutputInfo, error) {
	for _, o := range outputs {
		if o.Name == probabilitiesOutput {
			return o, nil
		}
	}
	if len(outputs) == 1 {
		return outputs[0], nil
	}
	return ort.InputOutputInfo{}, fmt.Errorf("onnx: no %q output among %d outputs",
		probabilitiesOutput, len(outputs))
}

func (c *onnxClassifier) Proba(x []float64) ([]float64, error) {
	row := make([]float32, len(x))
	for i, v := range x {
		row[i] = float32(math.Max(-maxFloat32Input, math.Min(maxFloat32Input, v)))
	}
	in, err := ort.NewTensor(ort.NewShape(1, int64(len(row))), row)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create input tensor: %w", err)
	}
	defer in.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, c.classes))
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create output tensor: %w", err)
	}
	defer out.Destroy()

	if err := c.session.Run([]ort.Value{in}, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("onnx: inference failed: %w", err)
	}
	data := out.GetData()
	p := make([]float64, len(data))
	for i, v := range data {
		p[i] = float64(v)
	}
	return p, nil
}

func (c *onnxClassifier) Close() error {
	return c.session.Destroy()
}
