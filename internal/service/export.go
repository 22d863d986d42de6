package service

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/TuneForge/internal/adapter/otel"
	"github.com/Strob0t/TuneForge/internal/domain/conversation"
	"github.com/Strob0t/TuneForge/internal/domain/event"
	"github.com/Strob0t/TuneForge/internal/domain/export"
	"github.com/Strob0t/TuneForge/internal/domain/tool"
	"github.com/Strob0t/TuneForge/internal/port/broadcast"
	"github.com/Strob0t/TuneForge/internal/port/database"
)

// ExportFile is an encoded fine-tuning file ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
	Records     int
}

// ExportService builds fine-tuning files from a dataset's conversations.
type ExportService struct {
	store   database.Store
	metrics *otel.Metrics
	events  broadcast.Broadcaster
}

// NewExportService creates an ExportService. metrics may be nil.
func NewExportService(store database.Store, metrics *otel.Metrics, events broadcast.Broadcaster) *ExportService {
	return &ExportService{store: store, metrics: metrics, events: orNop(events)}
}

// Export encodes every conversation of a dataset in the requested format,
// each record carrying all tools of the dataset's workspace.
func (s *ExportService) Export(ctx context.Context, datasetID, format string) (*ExportFile, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, err
	}

	ctx, span := otel.StartExportSpan(ctx, datasetID, string(f))
	defer span.End()

	file, err := s.export(ctx, datasetID, f)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("export.records", file.Records))
	return file, nil
}

func (s *ExportService) export(ctx context.Context, datasetID string, f export.Format) (*ExportFile, error) {
	d, err := s.store.GetDataset(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("export dataset %s: %w", datasetID, err)
	}
	owner, err := s.store.ResourceOwner(ctx, database.KindDataset, d.ID)
	if err != nil {
		return nil, fmt.Errorf("export dataset %s: workspace: %w", datasetID, err)
	}

	var (
		tools []tool.Tool
		convs []conversation.Conversation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tools, err = s.store.ListTools(gctx, owner.WorkspaceID)
		return err
	})
	g.Go(func() error {
		var err error
		convs, err = s.store.ListConversations(gctx, d.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("export dataset %s: load: %w", datasetID, err)
	}

	defs, invalid := export.BuildTools(tools)
	for _, id := range invalid {
		slog.Warn("tool parameters are not valid JSON, exporting empty object",
			"tool_id", id, "dataset_id", d.PublicID)
	}
	records := export.Build(defs, convs)
	body, err := export.Encode(f, records)
	if err != nil {
		return nil, fmt.Errorf("export dataset %s: %w", datasetID, err)
	}

	if err := s.store.RecordExport(ctx, d.ID); err != nil {
		slog.Warn("export stamp failed", "dataset_id", d.PublicID, "error", err)
	}
	s.metrics.RecordExport(ctx, string(f), len(records))
	emit(ctx, s.events, event.TypeDatasetExported, owner.UserID, owner.WorkspaceID, d.PublicID)

	return &ExportFile{
		Filename:    export.Filename(d.PublicID, f),
		ContentType: f.ContentType(),
		Body:        body,
		Records:     len(records),
	}, nil
}
