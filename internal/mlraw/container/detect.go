package container

import (
	"fmt"
	"os"

	"github.com/banshee-data/ml2raw/internal/mlraw"
	"github.com/banshee-data/ml2raw/internal/mlraw/layout"
	"github.com/banshee-data/ml2raw/internal/mlraw/readbuf"
)

// DetectFile reads just enough of a file to identify its sensor kind.
// The file offset advances by the magic length; callers that want to
// decode should reopen or seek back.
func DetectFile(path string) (mlraw.SensorKind, error) {
	f, err := os.Open(path)
	if err != nil {
		return mlraw.KindUnknown, err
	}
	defer f.Close()

	magic, err := readbuf.ReadExact(f, layout.MagicLen)
	if err != nil {
		return mlraw.KindUnknown, fmt.Errorf("%w: %s too short for a container magic",
			mlraw.ErrUnrecognizedFormat, path)
	}
	return layout.DetectKind(magic)
}
