package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/alanyoungcy/dcabot/internal/domain"
)

// Archiver uploads finished run reports as JSON documents.
type Archiver struct {
	writer domain.BlobWriter
	prefix string
	audit  domain.AuditStore
}

// NewArchiver creates an Archiver writing under prefix. audit may be nil;
// when set, every upload is recorded as a run_archived event.
func NewArchiver(writer domain.BlobWriter, prefix string, audit domain.AuditStore) *Archiver {
	return &Archiver{
		writer: writer,
		prefix: strings.Trim(prefix, "/"),
		audit:  audit,
	}
}

// Archive uploads report and returns the object key it was written to.
func (a *Archiver) Archive(ctx context.Context, report domain.RunReport) (string, error) {
	if report.RunID == "" {
		return "", fmt.Errorf("s3blob: archive run: empty run id")
	}

	buf, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("s3blob: archive run %s marshal: %w", report.RunID, err)
	}

	key := a.ReportKey(report)
	if err := a.writer.Put(ctx, key, bytes.NewReader(buf), "application/json"); err != nil {
		return "", fmt.Errorf("s3blob: archive run %s upload: %w", report.RunID, err)
	}

	if a.audit != nil {
		if err := a.audit.Log(ctx, domain.AuditRunArchived, map[string]any{
			"run_id": report.RunID,
			"key":    key,
			"bytes":  len(buf),
		}); err != nil {
			return key, fmt.Errorf("s3blob: archive run %s audit log: %w", report.RunID, err)
		}
	}
	return key, nil
}

// ReportKey is the object key for report, partitioned by the UTC day the
// run started:
//
//	<prefix>/runs/2026/03/01/<run-id>.json
func (a *Archiver) ReportKey(report domain.RunReport) string {
	day := report.StartedAt.UTC().Format("2006/01/02")
	key := fmt.Sprintf("runs/%s/%s.json", day, report.RunID)
	if a.prefix == "" {
		return key
	}
	return path.Join(a.prefix, key)
}
