package plan

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"slices"
	"strings"
)

// UpdateEnvFile sets the values on a dotenv file. Existing keys are replaced in
// place, missing ones are appended sorted, comments and unrelated lines are kept.
// The file is created when missing.
func UpdateEnvFile(path string, values map[string]string) error {
	mode := fs.FileMode(0644)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		data = nil
	case err != nil:
		return fmt.Errorf("could not read env file: %w", err)
	default:
		if info, err := os.Stat(path); err == nil {
			mode = info.Mode().Perm()
		}
	}

	updated, err := UpdateEnv(data, values)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, updated, mode); err != nil {
		return fmt.Errorf("could not write env file: %w", err)
	}
	return nil
}

// UpdateEnv is UpdateEnvFile over the file content.
func UpdateEnv(data []byte, values map[string]string) ([]byte, error) {
	pending := maps.Clone(values)
	if pending == nil {
		pending = map[string]string{}
	}

	var out bytes.Buffer
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		key, export := envKey(line)
		value, ok := pending[key]
		if key == "" || !ok {
			out.WriteString(line + "\n")
			continue
		}

		if export {
			out.WriteString("export ")
		}
		out.WriteString(key + "=" + envValue(value) + "\n")
		delete(pending, key)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not read env content: %w", err)
	}

	keys := slices.Sorted(maps.Keys(pending))
	for _, k := range keys {
		out.WriteString(k + "=" + envValue(pending[k]) + "\n")
	}

	return out.Bytes(), nil
}

// envKey returns the key of an assignment line and if it's exported.
func envKey(line string) (key string, export bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", false
	}

	if rest, ok := strings.CutPrefix(trimmed, "export "); ok {
		trimmed = strings.TrimSpace(rest)
		export = true
	}

	key, _, ok := strings.Cut(trimmed, "=")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(key), export
}

func envValue(v string) string {
	if v == "" || !strings.ContainsAny(v, " \t#\"'\\$`") {
		return v
	}

	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	v = strings.ReplaceAll(v, "$", `\$`)
	v = strings.ReplaceAll(v, "`", "\\`")
	return `"` + v + `"`
}
