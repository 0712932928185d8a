package checkpointer

import (
	"fmt"
	"strings"
)

// FilenameEnumerator returns a function that generates numbered
// checkpoint filenames. The first call returns filename followed by
// start + 1 and extension, and each later call increments the number.
// A leading dot is added to extension if it is missing.
func FilenameEnumerator(start int, filename, extension string) func() string {
	if extension != "" && !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}

	i := start
	return func() string {
		i++
		return fmt.Sprintf("%s%d%s", filename, i, extension)
	}
}
