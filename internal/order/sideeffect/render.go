package sideeffect

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/nazeru/order-console-go/pkg/contracts"
	"github.com/nazeru/order-console-go/pkg/receipt"
)

// SpoolRenderer renders the receipt locally and hands the file to the
// operator's print command (lp, a viewer with a print dialog, ...).
type SpoolRenderer struct {
	Dir     string
	Command []string
	now     func() time.Time
}

func NewSpoolRenderer(dir string, command []string) *SpoolRenderer {
	return &SpoolRenderer{Dir: dir, Command: command, now: time.Now}
}

func (r *SpoolRenderer) Render(ctx context.Context, o contracts.PrintOrder) error {
	doc, err := receipt.Render(o)
	if err != nil {
		return errors.Wrap(err, "render receipt")
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return errors.Wrap(err, "spool dir")
	}
	now := time.Now
	if r.now != nil {
		now = r.now
	}
	name := fmt.Sprintf("receipt-%s-%d.txt", o.ID, now().UnixNano())
	path := filepath.Join(r.Dir, name)
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return errors.Wrap(err, "write receipt")
	}
	if len(r.Command) == 0 {
		return nil
	}
	args := append(append([]string{}, r.Command[1:]...), path)
	if out, err := exec.CommandContext(ctx, r.Command[0], args...).CombinedOutput(); err != nil {
		return errors.Wrapf(err, "print command: %s", out)
	}
	return nil
}
