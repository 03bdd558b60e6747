package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"detectserver/internal/model"
)

// ModelFiles describes where the network for one selector lives on disk.
type ModelFiles struct {
	DarknetConfig  string  `yaml:"darknet_config"`
	DarknetWeights string  `yaml:"darknet_weights"`
	ONNXModel      string  `yaml:"onnx_model"`
	InputSize      int     `yaml:"input_size"`
	InputName      string  `yaml:"input_name"`
	OutputName     string  `yaml:"output_name"`
	OutputShape    []int64 `yaml:"output_shape"`
	NamesFile      string  `yaml:"names_file"` // One class label per line; COCO when empty
}

// Catalog maps each selector to its model files.
type Catalog map[model.ModelSelector]ModelFiles

// Lookup returns the files for a selector.
func (c Catalog) Lookup(selector model.ModelSelector) (ModelFiles, error) {
	files, ok := c[selector]
	if !ok {
		return ModelFiles{}, fmt.Errorf("no model files configured for %q", selector)
	}
	return files, nil
}

// DefaultCatalog lays out the stock Darknet/ONNX exports under dir.
func DefaultCatalog(dir string) Catalog {
	catalog := Catalog{}
	for _, selector := range model.ModelSelectors {
		name := string(selector)
		catalog[selector] = ModelFiles{
			DarknetConfig:  filepath.Join(dir, name+".cfg"),
			DarknetWeights: filepath.Join(dir, name+".weights"),
			ONNXModel:      filepath.Join(dir, name+".onnx"),
			InputSize:      416,
			InputName:      "images",
			OutputName:     "output",
			OutputShape:    defaultOutputShape(selector),
		}
	}
	return catalog
}

// defaultOutputShape matches a 416x416 export with 80 COCO classes.
func defaultOutputShape(selector model.ModelSelector) []int64 {
	if selector == model.ModelYOLOv3Tiny {
		return []int64{1, 2535, 85}
	}
	return []int64{1, 10647, 85}
}

// LoadCatalog reads a YAML document keyed by selector. Relative paths are
// resolved against the catalog's directory.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model catalog: %w", err)
	}

	raw := map[string]ModelFiles{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse model catalog: %w", err)
	}

	base := filepath.Dir(path)
	catalog := Catalog{}
	for key, files := range raw {
		selector, err := model.ParseModelSelector(key)
		if err != nil {
			return nil, fmt.Errorf("model catalog: %w", err)
		}
		files.DarknetConfig = resolve(base, files.DarknetConfig)
		files.DarknetWeights = resolve(base, files.DarknetWeights)
		files.ONNXModel = resolve(base, files.ONNXModel)
		files.NamesFile = resolve(base, files.NamesFile)
		if files.InputSize <= 0 {
			files.InputSize = 416
		}
		if files.InputName == "" {
			files.InputName = "images"
		}
		if files.OutputName == "" {
			files.OutputName = "output"
		}
		catalog[selector] = files
	}
	return catalog, nil
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
