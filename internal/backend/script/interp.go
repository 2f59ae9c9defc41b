package script

import "path/filepath"

// interpreters is the closed table mapping script extension to the
// interpreter that runs it. Resolution is table-driven so the spawn path
// never does ad hoc string checks.
var interpreters = map[string]string{
	".py": "python3",
	".sh": "bash",
}

// scriptExtensions is the order candidate filenames are probed in.
var scriptExtensions = []string{".py", ".sh"}

// interpreterFor returns the interpreter for a script path, or false when
// the extension is not recognized.
func interpreterFor(path string) (string, bool) {
	interp, ok := interpreters[filepath.Ext(path)]
	return interp, ok
}
