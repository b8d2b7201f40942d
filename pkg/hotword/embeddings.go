package hotword

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
)

func OnnxModelPath() string {
	return "model/hotword/resnet_qint8.onnx"
}

type embeddingsJSON struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// LoadEmbeddings reads the reference embeddings of one keyword.
func LoadEmbeddings(filePath string) ([][]float32, error) {
	b, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read embeddings file %s: %w", filePath, err)
	}
	var v embeddingsJSON
	if err = sonic.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal embeddings file %s: %w", filePath, err)
	}
	if len(v.Embeddings) == 0 {
		return nil, fmt.Errorf("embeddings file %s holds no embeddings", filePath)
	}
	return v.Embeddings, nil
}

// KeywordName derives a display name from a model path, e.g. "computer_ref.json" -> "computer".
func KeywordName(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.TrimSuffix(name, "_ref")
}
