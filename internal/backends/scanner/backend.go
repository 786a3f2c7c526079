// Package scanner acquires documents from a locally attached SANE
// scanner by shelling out to scanimage. Each upload triggers one scan
// pass; the resulting image is returned as the uploaded file.
package scanner

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
)

// BackendTypeID identifies the SANE scanner backend.
const BackendTypeID = "scanner"

var scanModes = map[string]bool{
	"":           true,
	"lineart":    true,
	"monochrome": true,
	"color":      true,
}

// runner executes the scan command and returns the image bytes.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Backend drives scanimage for one configured device.
type Backend struct {
	source domain.Source
	run    runner
}

// New builds a scanner backend for the given source.
func New(source domain.Source, _ driven.BackendDeps) (driven.Backend, error) {
	return &Backend{source: source, run: runScanCommand}, nil
}

// Type implements driven.Backend.
func (b *Backend) Type() string { return BackendTypeID }

// Setup implements driven.Backend.
func (b *Backend) Setup() []domain.ConfigKey {
	return []domain.ConfigKey{
		{Key: "device", Label: "Device", Description: "SANE device name, e.g. hpaio:/usb/...", Required: true},
		{Key: "mode", Label: "Mode", Description: "Scan mode: lineart, monochrome or color"},
		{Key: "resolution", Label: "Resolution", Description: "Scan resolution in DPI, e.g. 300"},
		{Key: "paper_source", Label: "Paper source", Description: "Input option passed to the driver, e.g. ADF"},
		{Key: "adf_mode", Label: "ADF mode", Description: "Duplex handling: simplex or duplex"},
	}
}

// Clean implements driven.Backend.
func (b *Backend) Clean(_ context.Context) error {
	if !scanModes[b.source.ConfigValue("mode", "")] {
		return domain.NewValidationError("mode", "must be lineart, monochrome or color")
	}
	return nil
}

// Actions implements driven.Backend.
func (b *Backend) Actions() []domain.Action {
	return []domain.Action{
		{Name: "scan", Description: "Run one scan pass and ingest the image"},
	}
}

// ExecuteAction implements driven.Backend.
func (b *Backend) ExecuteAction(ctx context.Context, name string, args domain.ActionArgs) (any, error) {
	if name != "scan" {
		return nil, domain.ErrUnknownAction
	}
	return b.UploadFile(ctx, args)
}

// UploadFile implements driven.InteractiveBackend by running scanimage
// and capturing its stdout as a PNG image.
func (b *Backend) UploadFile(ctx context.Context, _ domain.ActionArgs) (*domain.UploadedFile, error) {
	content, err := b.run(ctx, "scanimage", b.commandArgs()...)
	if err != nil {
		return nil, &domain.SourceError{SourceID: b.source.ID, Message: "scan failed", Err: err}
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: scanner produced no image", domain.ErrEmptyFile)
	}
	return &domain.UploadedFile{
		Filename: fmt.Sprintf("scan-%s.png", time.Now().UTC().Format("20060102-150405")),
		Content:  content,
	}, nil
}

// commandArgs builds the scanimage invocation from the source config.
// Only configured options are passed so driver defaults apply.
func (b *Backend) commandArgs() []string {
	args := []string{"--format=png"}
	if device := b.source.ConfigValue("device", ""); device != "" {
		args = append(args, "-d", device)
	}
	if mode := b.source.ConfigValue("mode", ""); mode != "" {
		args = append(args, "--mode", mode)
	}
	if resolution := b.source.ConfigValue("resolution", ""); resolution != "" {
		args = append(args, "--resolution", resolution)
	}
	if paperSource := b.source.ConfigValue("paper_source", ""); paperSource != "" {
		args = append(args, "--source", paperSource)
	}
	if adfMode := b.source.ConfigValue("adf_mode", ""); adfMode != "" {
		args = append(args, "--adf-mode", adfMode)
	}
	return args
}

func runScanCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}
