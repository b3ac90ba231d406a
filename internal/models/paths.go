// Package models resolves ONNX model and dictionary files under the models
// directory.
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Model files.
const (
	DetectionMobile = "PP-OCRv5_mobile_det.onnx"
	DetectionServer = "PP-OCRv5_server_det.onnx"

	RecognitionLatin  = "PP-OCRv5_mobile_rec.onnx"
	RecognitionArabic = "arabic_PP-OCRv3_mobile_rec.onnx"

	DictionaryLatin  = "ppocr_keys_v1.txt"
	DictionaryArabic = "arabic_dict.txt"
)

// Directory layout under the models directory.
const (
	TypeDetection    = "detection"
	TypeRecognition  = "recognition"
	TypeDictionaries = "dictionaries"
)

// Languages with a bundled recognizer.
const (
	LangEnglish = "en"
	LangArabic  = "ar"
)

// DefaultModelsDir is used when neither configuration nor environment names one.
const DefaultModelsDir = "models"

// EnvModelsDir overrides the models directory.
const EnvModelsDir = "DOCVERIFY_MODELS_DIR"

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root (go.mod not found)")
		}
		dir = parent
	}
}

// GetModelsDir picks the explicit directory, then $DOCVERIFY_MODELS_DIR, then
// models/ under the project root, then a relative models/.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}
	if env := os.Getenv(EnvModelsDir); env != "" {
		return env
	}
	if root, err := findProjectRoot(); err == nil {
		return filepath.Join(root, DefaultModelsDir)
	}
	return DefaultModelsDir
}

// ResolveModelPath prefers models/<type>/<file> and falls back to the flat
// models/<file> layout.
func ResolveModelPath(modelsDir, modelType, filename string) string {
	base := GetModelsDir(modelsDir)
	if modelType != "" {
		organized := filepath.Join(base, modelType, filename)
		if _, err := os.Stat(organized); err == nil {
			return organized
		}
	}
	return filepath.Join(base, filename)
}

// DetectionModelPath returns the text detection model path.
func DetectionModelPath(modelsDir string, useServer bool) string {
	name := DetectionMobile
	if useServer {
		name = DetectionServer
	}
	return ResolveModelPath(modelsDir, TypeDetection, name)
}

// RecognitionModelPath returns the recognizer model for lang.
func RecognitionModelPath(modelsDir, lang string) (string, error) {
	switch lang {
	case LangEnglish, "":
		return ResolveModelPath(modelsDir, TypeRecognition, RecognitionLatin), nil
	case LangArabic:
		return ResolveModelPath(modelsDir, TypeRecognition, RecognitionArabic), nil
	default:
		return "", fmt.Errorf("no recognition model for language %q", lang)
	}
}

// DictionaryPath returns the character dictionary for lang.
func DictionaryPath(modelsDir, lang string) (string, error) {
	switch lang {
	case LangEnglish, "":
		return ResolveModelPath(modelsDir, TypeDictionaries, DictionaryLatin), nil
	case LangArabic:
		return ResolveModelPath(modelsDir, TypeDictionaries, DictionaryArabic), nil
	default:
		return "", fmt.Errorf("no dictionary for language %q", lang)
	}
}

// ValidateModelExists reports a missing model file.
func ValidateModelExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", path)
	}
	return nil
}
