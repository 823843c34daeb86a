package synth

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/reportbuilder/internal/runctx"
)

// Published holds the paths of the written report files. PDF is empty when
// rendering failed.
type Published struct {
	Markdown string
	PDF      string
}

// Publish writes <outputsDir>/<timestamp>_<slug>_report.md and then tries
// the PDF rendering next to it.
func Publish(run *runctx.Run, outputsDir, report string) (Published, error) {
	if err := os.MkdirAll(outputsDir, 0o755); err != nil {
		return Published{}, fmt.Errorf("create outputs dir: %w", err)
	}
	base := filepath.Join(outputsDir, run.Timestamp+"_"+run.Slug+"_report")
	out := Published{Markdown: base + ".md"}
	if err := os.WriteFile(out.Markdown, []byte(report), 0o644); err != nil {
		return Published{}, fmt.Errorf("write report: %w", err)
	}
	run.Logf("Saved report markdown to %s", out.Markdown)

	pdfPath := base + ".pdf"
	if err := WritePDF(report, pdfPath); err != nil {
		run.Logf("Warning: PDF rendering failed: %v", err)
		log.Warn().Err(err).Str("path", pdfPath).Msg("pdf rendering failed")
		_ = os.Remove(pdfPath)
		return out, nil
	}
	out.PDF = pdfPath
	run.Logf("Saved report PDF to %s", pdfPath)
	return out, nil
}
