package importer

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/elabftw/rspace2elabftw/internal/elabftw"
	"github.com/elabftw/rspace2elabftw/internal/eln"
	"github.com/elabftw/rspace2elabftw/internal/rspace"
)

// docPrefix marks the crate datasets that carry RSpace documents.
const docPrefix = "doc_"

// xmlUploadComment is the comment on the source XML upload attached to each
// imported entity.
const xmlUploadComment = "XML data from RSpace"

// api is the subset of the eLabFTW client the importer uses. Kept as an
// interface so tests can inject a fake.
type api interface {
	CreateEntity(ctx context.Context, typ elabftw.EntityType, req elabftw.CreateEntityRequest) (int, error)
	PatchEntity(ctx context.Context, typ elabftw.EntityType, id int, req elabftw.PatchEntityRequest) error
	UploadFile(ctx context.Context, typ elabftw.EntityType, id int, srcPath, comment string) (int, error)
	ReadUpload(ctx context.Context, typ elabftw.EntityType, id, uploadID int) (*elabftw.Upload, error)
}

// Config controls an import run.
type Config struct {
	// Strict aborts the run on the first record failure.
	Strict bool
	// DryRun parses and maps everything but makes no API calls.
	DryRun bool
	// Concurrency bounds parallel attachment uploads within one record.
	Concurrency int
	// Exclude holds doublestar patterns; matching part IDs are not imported.
	Exclude []string
}

// Importer drives the archive-to-API pipeline.
type Importer struct {
	client api
	cfg    Config
	logger *slog.Logger
}

// New creates an Importer.
func New(client api, cfg Config, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Importer{client: client, cfg: cfg, logger: logger}
}

// Run imports every record of the crate, in manifest order. The returned
// Result is non-nil whenever the archive itself was usable; record failures
// are reported inside it unless Strict is set, in which case the first
// failure aborts the run.
func (imp *Importer) Run(ctx context.Context, crate *eln.Crate) (*Result, error) {
	result := &Result{
		RunID:  uuid.NewString(),
		DryRun: imp.cfg.DryRun,
	}
	logger := imp.logger.With("run_id", result.RunID)
	logger.Debug("starting import")

	records, skipped, collectErrs := CollectRecords(crate, imp.cfg.Exclude)
	for _, id := range skipped {
		logger.Warn("no importable record XML in dataset", "dataset", id)
		result.Skipped++
	}
	for _, cerr := range collectErrs {
		if imp.cfg.Strict {
			return nil, cerr
		}
		logger.Error("unreadable record", "dataset", cerr.DatasetID, "error", cerr.Err)
		result.Errors = append(result.Errors, cerr)
		result.Failed++
	}
	logger.Info("archive decoded", "records", len(records))

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := imp.importRecord(ctx, crate, rec, result); err != nil {
			recErr := RecordError{DatasetID: rec.DatasetID, Err: err}
			if imp.cfg.Strict {
				return result, recErr
			}
			logger.Error("record failed", "dataset", rec.DatasetID, "error", err)
			result.Errors = append(result.Errors, recErr)
			result.Failed++
		}
	}

	logger.Info("import finished",
		"created", result.Created,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"uploads", result.Uploads)
	return result, nil
}

// CollectRecords walks the crate's document datasets and decodes their XML
// files. A dataset can hold several record XMLs; each becomes its own
// Record, in part order. Form definition files and excluded parts are
// ignored. The returned skipped list names the datasets that had no
// importable XML at all; decode failures come back alongside the usable
// records so the caller can apply its error policy.
func CollectRecords(crate *eln.Crate, exclude []string) (records []Record, skipped []string, errs []RecordError) {
	for _, ds := range crate.Datasets() {
		if !strings.HasPrefix(ds.ID, docPrefix) {
			continue
		}
		parts := recordXMLParts(ds, exclude)
		if len(parts) == 0 {
			skipped = append(skipped, ds.ID)
			continue
		}
		for _, part := range parts {
			doc, err := rspace.DecodeFile(part.Path)
			if err != nil {
				errs = append(errs, RecordError{DatasetID: ds.ID, Err: err})
				continue
			}
			records = append(records, Record{
				DatasetID: ds.ID,
				Tags:      ds.Keywords,
				XMLID:     part.ID,
				XMLPath:   part.Path,
				Doc:       doc,
			})
		}
	}
	return records, skipped, errs
}

// recordXMLParts finds the dataset's record XMLs, skipping form definitions
// (*_form.xml) and excluded parts.
func recordXMLParts(ds eln.Dataset, exclude []string) []eln.Part {
	var out []eln.Part
	for _, part := range ds.Parts {
		if !strings.HasSuffix(part.ID, ".xml") || strings.HasSuffix(part.ID, "_form.xml") {
			continue
		}
		if matchesAny(part.ID, exclude) {
			continue
		}
		out = append(out, part)
	}
	return out
}

func matchesAny(id string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, id); err == nil && ok {
			return true
		}
	}
	return false
}

// importRecord issues the API calls for one record: create, attachment
// uploads, body patch, source XML upload.
func (imp *Importer) importRecord(ctx context.Context, crate *eln.Crate, rec Record, result *Result) error {
	typ, ok := entityType(rec.Doc)
	if !ok {
		imp.logger.Warn("could not figure out the entity type",
			"dataset", rec.DatasetID, "type", rec.Doc.Type)
		result.Skipped++
		return nil
	}

	tags := append(slices.Clone(rec.Tags), ImportTag)
	imp.logger.Info("creating entry", "title", rec.Doc.Name, "type", typ)

	images := recordImages(rec.Doc, imp.cfg.Exclude)
	if imp.cfg.DryRun {
		// Exercise the body mapping so a record that cannot be rewritten
		// surfaces now rather than on the real run.
		if _, err := BuildBody(rec.Doc, nil); err != nil {
			return fmt.Errorf("build body: %w", err)
		}
		imp.logger.Info("dry-run: would create entity",
			"dataset", rec.DatasetID, "title", rec.Doc.Name, "attachments", len(images)+1)
		result.Created++
		result.Uploads += len(images) + 1
		return nil
	}

	id, err := imp.client.CreateEntity(ctx, typ, elabftw.CreateEntityRequest{
		Title: rec.Doc.Name,
		Tags:  tags,
	})
	if err != nil {
		return err
	}
	imp.logger.Debug("created entity", "dataset", rec.DatasetID, "id", id)

	uploads, err := imp.uploadImages(ctx, crate, typ, id, images)
	if err != nil {
		return err
	}
	result.Uploads += len(uploads)

	body, err := BuildBody(rec.Doc, uploads)
	if err != nil {
		return fmt.Errorf("build body: %w", err)
	}
	if err := imp.client.PatchEntity(ctx, typ, id, elabftw.PatchEntityRequest{Body: body}); err != nil {
		return err
	}

	if _, err := imp.client.UploadFile(ctx, typ, id, rec.XMLPath, xmlUploadComment); err != nil {
		return err
	}
	result.Uploads++
	result.Created++
	return nil
}

// entityType maps the RSpace document type to the destination collection.
func entityType(doc *rspace.Document) (elabftw.EntityType, bool) {
	switch doc.Type {
	case rspace.TypeNormal:
		return elabftw.TypeExperiments, true
	case rspace.TypeTemplate:
		return elabftw.TypeExperimentsTemplates, true
	default:
		return "", false
	}
}

// recordImages returns the images linked from the document's main field.
// Only the main field carries file attachments in RSpace exports.
func recordImages(doc *rspace.Document, exclude []string) []rspace.Image {
	main := doc.MainField()
	if main == nil {
		return nil
	}
	var out []rspace.Image
	for _, img := range main.Images.Images {
		if img.LinkFile == "" {
			continue
		}
		if matchesAny(strings.TrimPrefix(img.LinkFile, "../"), exclude) {
			continue
		}
		out = append(out, img)
	}
	return out
}

// uploadImages uploads the record's images, bounded by Config.Concurrency,
// and returns the image name to server long_name mapping used for body
// rewriting.
func (imp *Importer) uploadImages(ctx context.Context, crate *eln.Crate, typ elabftw.EntityType, id int, images []rspace.Image) (map[string]string, error) {
	uploads := make(map[string]string, len(images))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imp.cfg.Concurrency)
	for _, img := range images {
		img := img
		g.Go(func() error {
			src, err := crate.Resolve(img.LinkFile)
			if err != nil {
				return fmt.Errorf("resolve image %s: %w", img.Name, err)
			}
			uploadID, err := imp.client.UploadFile(gctx, typ, id, src, img.Description)
			if err != nil {
				return err
			}
			up, err := imp.client.ReadUpload(gctx, typ, id, uploadID)
			if err != nil {
				return err
			}
			mu.Lock()
			uploads[img.Name] = up.LongName
			mu.Unlock()
			imp.logger.Debug("uploaded image", "name", img.Name, "long_name", up.LongName)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return uploads, nil
}
