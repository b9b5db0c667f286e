package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/rsdeploy/rsdeploy/internal/utils/fileutil"
	rserrors "github.com/rsdeploy/rsdeploy/pkg/errors"
)

// LoadGlobalConfig loads the configuration from a YAML file on top of DefaultConfig.
// LoadGlobalConfig 在 DefaultConfig 的基础上从 YAML 文件加载配置。
func LoadGlobalConfig(path string) (*GlobalConfig, error) {
	safePath := filepath.Clean(path)
	data, err := os.ReadFile(safePath) // #nosec G304 // path is sanitized with filepath.Clean
	if err != nil {
		return nil, err
	}
	return ParseGlobalConfig(data)
}

// ParseGlobalConfig decodes YAML over the defaults and validates the result.
// ParseGlobalConfig 在默认值之上解析 YAML 并校验结果。
func ParseGlobalConfig(data []byte) (*GlobalConfig, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", rserrors.ErrConfigInvalid, err)
	}

	// Validate configuration / 验证配置
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// SaveGlobalConfig writes cfg to path atomically. When the file already exists
// its comments and key order are kept and only the values are replaced.
// SaveGlobalConfig 原子写入配置。文件已存在时保留注释与键顺序，仅替换值。
func SaveGlobalConfig(path string, cfg *GlobalConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	var newNode yaml.Node
	if err := yaml.Unmarshal(data, &newNode); err != nil {
		return err
	}

	safePath := filepath.Clean(path)
	fileData, readErr := os.ReadFile(safePath) // #nosec G304 // path is sanitized with filepath.Clean
	if readErr == nil {
		var fileNode yaml.Node
		if err := yaml.Unmarshal(fileData, &fileNode); err == nil && fileNode.Kind == yaml.DocumentNode {
			MergeYamlNodes(&fileNode, &newNode)

			var buf bytes.Buffer
			enc := yaml.NewEncoder(&buf)
			enc.SetIndent(2)
			if err := enc.Encode(&fileNode); err != nil {
				return err
			}
			return fileutil.AtomicWriteFile(safePath, buf.Bytes(), 0600)
		}
	}

	// No usable existing file: write the plain encoding.
	return fileutil.AtomicWriteFile(safePath, data, 0600)
}

// WriteDefaultConfig writes DefaultConfigTemplate to path. An existing file is
// only replaced when overwrite is true.
// WriteDefaultConfig 将默认模板写入 path，仅当 overwrite 为真时覆盖已有文件。
func WriteDefaultConfig(path string, overwrite bool) error {
	safePath := filepath.Clean(path)
	if !overwrite {
		if _, err := os.Stat(safePath); err == nil {
			return rserrors.NewFilePathError(safePath, os.ErrExist)
		}
	}
	if dir := filepath.Dir(safePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return rserrors.NewFilePathError(dir, err)
		}
	}
	return fileutil.AtomicWriteFile(safePath, []byte(DefaultConfigTemplate), 0600)
}

// MergeYamlNodes updates target (existing file) with source (new values),
// keeping target's comments and key order and appending keys only source has.
// MergeYamlNodes 用 source（新值）更新 target（现有文件），保留 target 的注释与键顺序。
func MergeYamlNodes(target, source *yaml.Node) {
	if target.Kind == yaml.DocumentNode {
		if source.Kind == yaml.DocumentNode && len(target.Content) > 0 && len(source.Content) > 0 {
			MergeYamlNodes(target.Content[0], source.Content[0])
		}
		return
	}

	if target.Kind != yaml.MappingNode || source.Kind != yaml.MappingNode {
		// Replace the value, carrying over the old comments.
		if source.HeadComment == "" {
			source.HeadComment = target.HeadComment
		}
		if source.LineComment == "" {
			source.LineComment = target.LineComment
		}
		if source.FootComment == "" {
			source.FootComment = target.FootComment
		}
		*target = *source
		return
	}

	sourceIdx := make(map[string]int, len(source.Content)/2)
	for i := 0; i+1 < len(source.Content); i += 2 {
		sourceIdx[source.Content[i].Value] = i
	}

	merged := make(map[string]bool)
	content := make([]*yaml.Node, 0, len(target.Content))
	for i := 0; i+1 < len(target.Content); i += 2 {
		key, val := target.Content[i], target.Content[i+1]
		if j, ok := sourceIdx[key.Value]; ok {
			MergeYamlNodes(val, source.Content[j+1])
			merged[key.Value] = true
		}
		content = append(content, key, val)
	}
	for i := 0; i+1 < len(source.Content); i += 2 {
		if !merged[source.Content[i].Value] {
			content = append(content, source.Content[i], source.Content[i+1])
		}
	}
	target.Content = content
}
