package hotword

import (
	"fmt"
	"log/slog"

	onnx "github.com/yalue/onnxruntime_go"
	"go.uber.org/multierr"
)

var useCoreML bool

// Network runs the keyword embedding resnet on log-mel vectors. The onnx
// session and its tensors are created once and reused for every frame.
type Network struct {
	path    string
	options *onnx.SessionOptions
	input   *onnx.Tensor[float32]
	output  *onnx.Tensor[float32]
	session *onnx.AdvancedSession
}

func NewNetwork(runtimePath, networkPath string, logger *slog.Logger) (n *Network, err error) {
	onnx.SetSharedLibraryPath(runtimePath)
	if err = onnx.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to init onnx lib: %w", err)
	}
	n = &Network{path: networkPath}
	defer func() {
		if err != nil {
			err = multierr.Append(err, n.Destroy())
			n = nil
		}
	}()
	inputs, outputs, err := onnx.GetInputOutputInfo(networkPath)
	if err != nil {
		return n, fmt.Errorf("failed to get net info for %s: %w", networkPath, err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return n, fmt.Errorf("network %s has no inputs or outputs", networkPath)
	}
	logger.Debug("network loaded", "path", networkPath,
		"input", inputs[0].Name, "input_shape", inputs[0].Dimensions,
		"output", outputs[0].Name, "output_shape", outputs[0].Dimensions)

	if n.options, err = sessionOptions(); err != nil {
		return n, err
	}
	if n.input, err = onnx.NewEmptyTensor[float32](fixedShape(inputs[0].Dimensions)); err != nil {
		return n, fmt.Errorf("failed to create input tensor: %w", err)
	}
	if n.output, err = onnx.NewEmptyTensor[float32](fixedShape(outputs[0].Dimensions)); err != nil {
		return n, fmt.Errorf("failed to create output tensor: %w", err)
	}
	n.session, err = onnx.NewAdvancedSession(
		networkPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		[]onnx.ArbitraryTensor{n.input},
		[]onnx.ArbitraryTensor{n.output},
		n.options,
	)
	if err != nil {
		return n, fmt.Errorf("failed to create onnx session: %w", err)
	}
	return n, nil
}

// fixedShape pins dynamic (batch) dimensions to 1.
func fixedShape(dims onnx.Shape) onnx.Shape {
	shape := make(onnx.Shape, len(dims))
	for i, d := range dims {
		if d < 1 {
			d = 1
		}
		shape[i] = d
	}
	return shape
}

func sessionOptions() (*onnx.SessionOptions, error) {
	options, err := onnx.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create onnx session options: %w", err)
	}
	if useCoreML {
		if err = options.AppendExecutionProviderCoreML(0); err != nil {
			return nil, multierr.Append(fmt.Errorf("failed to enable CoreML: %w", err), options.Destroy())
		}
	}
	return options, nil
}

// Embed returns the embedding of one log-mel vector. The result is a copy.
func (n *Network) Embed(vec []float32) ([]float32, error) {
	in := n.input.GetData()
	if len(vec) != len(in) {
		return nil, fmt.Errorf("input has %d values, %s expects %d", len(vec), n.path, len(in))
	}
	copy(in, vec)
	if err := n.session.Run(); err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", n.path, err)
	}
	return append([]float32(nil), n.output.GetData()...), nil
}

func (n *Network) Destroy() (err error) {
	if n.session != nil {
		err = multierr.Append(err, n.session.Destroy())
	}
	if n.input != nil {
		err = multierr.Append(err, n.input.Destroy())
	}
	if n.output != nil {
		err = multierr.Append(err, n.output.Destroy())
	}
	if n.options != nil {
		err = multierr.Append(err, n.options.Destroy())
	}
	return multierr.Append(err, onnx.DestroyEnvironment())
}
