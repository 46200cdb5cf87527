package entries

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/supratours/virements/internal/attachments"
	"github.com/supratours/virements/internal/masterdata/shared"
	core "github.com/supratours/virements/internal/shared"
)

// Printer renders an operation as a PDF.
type Printer interface {
	PrintOperation(ctx context.Context, op Operation) ([]byte, error)
}

type Service struct {
	repo    Repository
	files   attachments.Store
	printer Printer
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(repo Repository, files attachments.Store, printer Printer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, files: files, printer: printer, logger: logger, now: time.Now}
}

func (s *Service) ListAccounts(ctx context.Context, filters shared.ListFilters) ([]Account, int, error) {
	return s.repo.ListAccounts(ctx, filters)
}

func (s *Service) GetAccount(ctx context.Context, id int64) (Account, error) {
	if id <= 0 {
		return Account{}, shared.ErrInvalidID
	}
	return s.repo.GetAccount(ctx, id)
}

func (s *Service) CreateAccount(ctx context.Context, in AccountInput) (Account, error) {
	a, err := buildAccount(in)
	if err != nil {
		return Account{}, err
	}
	return s.repo.CreateAccount(ctx, a)
}

func (s *Service) UpdateAccount(ctx context.Context, id int64, in AccountInput) (Account, error) {
	if id <= 0 {
		return Account{}, shared.ErrInvalidID
	}
	a, err := buildAccount(in)
	if err != nil {
		return Account{}, err
	}
	a.ID = id
	if err := s.repo.UpdateAccount(ctx, a); err != nil {
		return Account{}, err
	}
	return a, nil
}

// DeleteAccount removes the account together with the lines posted on it.
func (s *Service) DeleteAccount(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.DeleteAccount(ctx, id)
}

// ImportAccounts upserts the chart of accounts from a CSV file with a
// numero and an intitule column. Comma and semicolon separators are
// accepted. The import is all or nothing.
func (s *Service) ImportAccounts(ctx context.Context, r io.Reader) (ImportResult, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(br.Size())
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return ImportResult{}, err
	}
	reader := csv.NewReader(br)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	if first, _, _ := strings.Cut(string(head), "\n"); strings.Count(first, ";") > strings.Count(first, ",") {
		reader.Comma = ';'
	}

	header, err := reader.Read()
	if err != nil {
		return ImportResult{}, core.NewValidationError("fichier", "is empty or not a CSV file")
	}
	numeroCol, intituleCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "numero":
			numeroCol = i
		case "intitule":
			intituleCol = i
		}
	}
	if numeroCol < 0 || intituleCol < 0 {
		return ImportResult{}, core.NewValidationError("fichier", "must contain the columns numero and intitule")
	}

	var accounts []Account
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ImportResult{}, core.NewValidationError("fichier", fmt.Sprintf("line %d: %v", line, err))
		}
		if numeroCol >= len(record) || intituleCol >= len(record) {
			return ImportResult{}, core.NewValidationError("fichier", fmt.Sprintf("line %d: missing columns", line))
		}
		if strings.TrimSpace(record[numeroCol]) == "" {
			continue
		}
		a, err := buildAccount(AccountInput{Numero: record[numeroCol], Intitule: record[intituleCol]})
		if err != nil {
			return ImportResult{}, core.NewValidationError("fichier", fmt.Sprintf("line %d: %v", line, err))
		}
		accounts = append(accounts, a)
	}

	var result ImportResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, a := range accounts {
			created, err := tx.UpsertAccount(ctx, a)
			if err != nil {
				return err
			}
			if created {
				result.Created++
			} else {
				result.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	s.logger.Info("chart of accounts imported", slog.Int("created", result.Created), slog.Int("updated", result.Updated))
	return result, nil
}

func (s *Service) ListOperations(ctx context.Context, filters OperationFilters) ([]Operation, int, error) {
	return s.repo.ListOperations(ctx, filters)
}

func (s *Service) GetOperation(ctx context.Context, id int64) (Operation, error) {
	if id <= 0 {
		return Operation{}, shared.ErrInvalidID
	}
	return s.repo.GetOperation(ctx, id)
}

// CreateOperation opens an operation without lines. justif is optional.
func (s *Service) CreateOperation(ctx context.Context, actor core.Actor, in OperationInput, justif io.Reader) (Operation, error) {
	op, err := s.buildOperation(in)
	if err != nil {
		return Operation{}, err
	}
	op.DateOperation = core.Today(s.now())
	if actor.ID > 0 {
		id := actor.ID
		op.CreatedBy = &id
	}
	op, err = s.repo.CreateOperation(ctx, op)
	if err != nil {
		return Operation{}, err
	}
	if justif != nil {
		key, err := s.files.Put(ctx, attachments.KindEntries, op.ID, "justif_pdf", justif, attachments.AcceptPDF)
		if err == nil {
			err = s.repo.SetJustif(ctx, op.ID, key)
		}
		if err != nil {
			if key != "" {
				_ = s.files.Delete(ctx, key)
			}
			if delErr := s.repo.DeleteOperation(ctx, op.ID); delErr != nil {
				s.logger.Error("remove operation after failed upload", slog.Int64("operation_id", op.ID), slog.Any("error", delErr))
			}
			return Operation{}, err
		}
	}
	return s.repo.GetOperation(ctx, op.ID)
}

// UpdateOperation edits the header and replaces the justification when a
// new file is given.
func (s *Service) UpdateOperation(ctx context.Context, id int64, in OperationInput, justif io.Reader) (Operation, error) {
	current, err := s.GetOperation(ctx, id)
	if err != nil {
		return Operation{}, err
	}
	op, err := s.buildOperation(in)
	if err != nil {
		return Operation{}, err
	}
	op.ID = id
	if err := s.repo.UpdateOperation(ctx, op); err != nil {
		return Operation{}, err
	}
	if justif != nil {
		key, err := s.files.Put(ctx, attachments.KindEntries, id, "justif_pdf", justif, attachments.AcceptPDF)
		if err != nil {
			return Operation{}, err
		}
		if err := s.repo.SetJustif(ctx, id, key); err != nil {
			_ = s.files.Delete(ctx, key)
			return Operation{}, err
		}
		if err := attachments.Replace(ctx, s.files, current.JustifPDF, key); err != nil {
			s.logger.Warn("delete replaced justification", slog.String("key", current.JustifPDF), slog.Any("error", err))
		}
	}
	return s.repo.GetOperation(ctx, id)
}

func (s *Service) DeleteOperation(ctx context.Context, id int64) error {
	current, err := s.GetOperation(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteOperation(ctx, id); err != nil {
		return err
	}
	var pending attachments.Pending
	pending.Remove(current.JustifPDF)
	_ = pending.Flush(ctx, s.files, s.logger)
	return nil
}

// AddLine posts a line and recomputes the operation's valide flag.
func (s *Service) AddLine(ctx context.Context, operationID int64, in LineInput) (Operation, error) {
	if operationID <= 0 {
		return Operation{}, shared.ErrInvalidID
	}
	line, err := buildLine(operationID, in)
	if err != nil {
		return Operation{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.LockOperation(ctx, operationID); err != nil {
			return err
		}
		if _, err := tx.InsertLine(ctx, line); err != nil {
			return err
		}
		return revalidate(ctx, tx, operationID)
	})
	if err != nil {
		return Operation{}, err
	}
	return s.repo.GetOperation(ctx, operationID)
}

// RemoveLine deletes a line and recomputes the operation's valide flag.
func (s *Service) RemoveLine(ctx context.Context, operationID, lineID int64) (Operation, error) {
	if operationID <= 0 || lineID <= 0 {
		return Operation{}, shared.ErrInvalidID
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.LockOperation(ctx, operationID); err != nil {
			return err
		}
		if err := tx.DeleteLine(ctx, operationID, lineID); err != nil {
			return err
		}
		return revalidate(ctx, tx, operationID)
	})
	if err != nil {
		return Operation{}, err
	}
	return s.repo.GetOperation(ctx, operationID)
}

// Print renders the operation with its lines and totals.
func (s *Service) Print(ctx context.Context, id int64) ([]byte, error) {
	if s.printer == nil {
		return nil, fmt.Errorf("entries: no printer configured: %w", core.ErrConfiguration)
	}
	op, err := s.GetOperation(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.printer.PrintOperation(ctx, op)
}

func revalidate(ctx context.Context, tx TxRepository, operationID int64) error {
	lines, err := tx.Lines(ctx, operationID)
	if err != nil {
		return err
	}
	return tx.SetValide(ctx, operationID, Balanced(lines))
}

func (s *Service) buildOperation(in OperationInput) (Operation, error) {
	in.Libelle = strings.TrimSpace(in.Libelle)
	if err := core.ValidateStruct(in); err != nil {
		return Operation{}, err
	}
	if err := CheckYear(in.AnneeComptable, s.now()); err != nil {
		return Operation{}, err
	}
	return Operation{Libelle: in.Libelle, AnneeComptable: in.AnneeComptable}, nil
}

func buildAccount(in AccountInput) (Account, error) {
	in.Numero = strings.TrimSpace(in.Numero)
	in.Intitule = strings.TrimSpace(in.Intitule)
	if err := core.ValidateStruct(in); err != nil {
		return Account{}, err
	}
	return Account{Numero: in.Numero, Intitule: in.Intitule}, nil
}

func buildLine(operationID int64, in LineInput) (Line, error) {
	in.Sens = strings.ToUpper(strings.TrimSpace(in.Sens))
	if err := core.ValidateStruct(in); err != nil {
		return Line{}, err
	}
	if !in.Montant.IsPositive() {
		return Line{}, core.NewValidationError("montant", "must be greater than 0")
	}
	if !in.Montant.Equal(in.Montant.Round(2)) {
		return Line{}, core.NewValidationError("montant", "must have at most 2 decimal places")
	}
	return Line{
		OperationID: operationID,
		CompteID:    in.CompteID,
		Montant:     in.Montant,
		Sens:        Direction(in.Sens),
	}, nil
}
