// Package registry loads the fitted scoring models once at process start
// and hands them out read-only.
package registry

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Skufu/GoCyto/internal/diagnosis"
)

// Source locates the artifacts of one model variant. ScalerPath is required
// for artifact formats that carry no scaler (safetensors, onnx) and
// overrides the bundled scaler of a JSON artifact when set.
type Source struct {
	Variant    diagnosis.Variant
	ModelPath  string
	ScalerPath string
}

// Options tunes artifact loading.
type Options struct {
	// ONNXRuntimeLib is the path to the ONNX Runtime shared library. When
	// empty, libonnxruntime.so next to the model file is used.
	ONNXRuntimeLib string
}

// Registry is the immutable set of loaded models.
type Registry struct {
	models  map[diagnosis.Variant]*diagnosis.Model
	closers []io.Closer
}

// Load reads every source. Any failure aborts the whole load: a process
// must not serve with a partial model set.
func Load(sources []Source, opts Options) (*Registry, error) {
	r := &Registry{models: make(map[diagnosis.Variant]*diagnosis.Model, len(sources))}
	for _, src := range sources {
		if _, dup := r.models[src.Variant]; dup {
			r.Close()
			return nil, fmt.Errorf("registry: variant %s configured twice", src.Variant)
		}
		m, closer, err := LoadModel(src, opts)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.models[src.Variant] = m
		if closer != nil {
			r.closers = append(r.closers, closer)
		}
	}
	return r, nil
}

// New builds a registry from already constructed models.
func New(models ...*diagnosis.Model) *Registry {
	r := &Registry{models: make(map[diagnosis.Variant]*diagnosis.Model, len(models))}
	for _, m := range models {
		r.models[m.Variant] = m
	}
	return r
}

// Model returns the model loaded for v.
func (r *Registry) Model(v diagnosis.Variant) (*diagnosis.Model, bool) {
	m, ok := r.models[v]
	return m, ok
}

// Variants lists the loaded variants in name order.
func (r *Registry) Variants() []diagnosis.Variant {
	out := make([]diagnosis.Variant, 0, len(r.models))
	for v := range r.models {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Versions maps each loaded variant to its artifact version.
func (r *Registry) Versions() map[diagnosis.Variant]string {
	out := make(map[diagnosis.Variant]string, len(r.models))
	for v, m := range r.models {
		out[v] = m.Version
	}
	return out
}

// Close releases runtime resources held by native model backends.
func (r *Registry) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// LoadModel reads one variant's artifacts. The returned closer is non-nil
// only for backends holding native resources.
func LoadModel(src Source, opts Options) (*diagnosis.Model, io.Closer, error) {
	switch strings.ToLower(filepath.Ext(src.ModelPath)) {
	case ".json":
		m, err := loadBundle(src)
		return m, nil, err
	case ".safetensors":
		if src.Variant != diagnosis.VariantSoftmax {
			return nil, nil, fmt.Errorf("registry: %s: safetensors artifacts hold softmax layers only", src.Variant)
		}
		m, err := loadSafetensorsSoftmax(src)
		return m, nil, err
	case ".onnx":
		if src.Variant != diagnosis.VariantMLP {
			return nil, nil, fmt.Errorf("registry: %s: onnx artifacts are supported for the mlp only", src.Variant)
		}
		return loadONNXMLP(src, opts)
	default:
		return nil, nil, fmt.Errorf("registry: %s: unsupported artifact %q", src.Variant, src.ModelPath)
	}
}
