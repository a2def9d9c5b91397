package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"pleader/internal/model"
	"pleader/internal/pkg/pdfextract"
	"pleader/internal/rag"
	"pleader/internal/repository"
)

// DocumentService handles document upload: text extraction, a one-shot
// legal analysis, and indexing into the knowledge base.
type DocumentService struct {
	docRepo       *repository.DocumentRepository
	pipeline      *rag.Pipeline
	generator     rag.Generator
	analysisModel string
	logger        *slog.Logger
}

func NewDocumentService(
	docRepo *repository.DocumentRepository,
	pipeline *rag.Pipeline,
	generator rag.Generator,
	analysisModel string,
	logger *slog.Logger,
) *DocumentService {
	return &DocumentService{
		docRepo:       docRepo,
		pipeline:      pipeline,
		generator:     generator,
		analysisModel: analysisModel,
		logger:        logger,
	}
}

type UploadInput struct {
	UserID   uint
	Filename string
	File     io.Reader
}

type UploadResult struct {
	Document      model.Document `json:"document"`
	ChunksAdded   int            `json:"chunks_added"`
	ChunksSkipped int            `json:"chunks_skipped"`
}

// Upload extracts text from the file, asks the model for an analysis, and
// indexes the chunks. Analysis and indexing failures degrade rather than
// fail the upload: the document record always reflects what happened.
func (s *DocumentService) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	if input.UserID == 0 || input.File == nil {
		return nil, ErrInvalidInput
	}

	text, err := s.extractText(input.Filename, input.File)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyDocument
	}

	analysis := s.analyze(ctx, input.Filename, text)

	doc := &model.Document{
		UserID:   input.UserID,
		Filename: input.Filename,
		Analysis: analysis,
	}
	if err := s.docRepo.Create(doc); err != nil {
		return nil, err
	}

	chunks := s.pipeline.Chunk(text)
	metas := make([]rag.ChunkMeta, len(chunks))
	for i := range chunks {
		metas[i] = rag.ChunkMeta{
			Filename:   input.Filename,
			UserID:     input.UserID,
			DocumentID: doc.ID,
			Index:      i,
		}
	}

	added, skipped, err := s.pipeline.Ingest(ctx, chunks, metas)
	if err != nil {
		s.logger.Error("document indexing failed", "filename", input.Filename, "error", err)
	}
	indexed := err == nil && added > 0

	doc.ChunkCount = added
	doc.RAGIndexed = indexed
	if err := s.docRepo.UpdateIndexState(doc.ID, added, indexed); err != nil {
		s.logger.Error("updating document record failed", "document_id", doc.ID, "error", err)
	}

	return &UploadResult{
		Document:      *doc,
		ChunksAdded:   added,
		ChunksSkipped: skipped,
	}, nil
}

func (s *DocumentService) List(userID uint) ([]model.Document, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.docRepo.ListByUserID(userID)
}

func (s *DocumentService) Get(userID, documentID uint) (*model.Document, error) {
	if userID == 0 || documentID == 0 {
		return nil, ErrInvalidInput
	}
	return s.docRepo.GetByIDAndUserID(documentID, userID)
}

// Delete removes the document record only. The flat index is
// append-only, so the document's chunks stay searchable until the next
// reset; callers that need them gone must reset and re-upload.
func (s *DocumentService) Delete(userID, documentID uint) error {
	if userID == 0 || documentID == 0 {
		return ErrInvalidInput
	}
	doc, err := s.docRepo.GetByIDAndUserID(documentID, userID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}
	if doc.RAGIndexed {
		s.logger.Warn("deleting document record, indexed chunks remain until reset",
			"document_id", documentID, "chunks", doc.ChunkCount)
	}
	return s.docRepo.DeleteByIDAndUserID(documentID, userID)
}

// Reset wipes the vector index and the document records together. The
// flat index cannot remove individual documents, so reset is all or
// nothing.
func (s *DocumentService) Reset() error {
	if err := s.pipeline.Reset(); err != nil {
		return err
	}
	if err := s.docRepo.DeleteAll(); err != nil {
		return err
	}
	return nil
}

func (s *DocumentService) extractText(filename string, file io.Reader) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		text, err := pdfextract.ExtractText(file)
		if err != nil {
			return "", fmt.Errorf("extract pdf text failed: %w", err)
		}
		return text, nil
	case ".txt":
		b, err := io.ReadAll(file)
		if err != nil {
			return "", fmt.Errorf("read text file failed: %w", err)
		}
		return string(b), nil
	default:
		return "", ErrUnsupportedFile
	}
}

const analysisExcerptRunes = 8000

// analyze produces a short structured summary of the document. A failure
// leaves the analysis empty; the document is still indexed.
func (s *DocumentService) analyze(ctx context.Context, filename, text string) string {
	if s.generator == nil || s.analysisModel == "" {
		return ""
	}

	excerpt := text
	if runes := []rune(excerpt); len(runes) > analysisExcerptRunes {
		excerpt = string(runes[:analysisExcerptRunes])
	}

	prompt := fmt.Sprintf(`You are Pleader AI, an expert legal assistant specializing in Indian law.

Analyze the following legal document and provide a concise summary covering:
- Document type and purpose
- Key parties involved (if any)
- Relevant Indian acts, sections, and articles referenced
- Important clauses, obligations, or findings

Document name: %s

Document text:
%s

Analysis:`, filename, excerpt)

	analysis, err := s.generator.GenerateText(ctx, s.analysisModel, prompt)
	if err != nil {
		s.logger.Warn("document analysis failed", "filename", filename, "error", err)
		return ""
	}
	return strings.TrimSpace(analysis)
}
