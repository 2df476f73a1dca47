package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"trivia-sync/internal/domain"
)

func TestBankRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		BankLoader: NewStaticBankLoader(map[string]domain.QuestionBank{
			"default": sampleBank(),
		}),
	}
	repo := NewBankRepository(loader, time.Minute)

	if _, err := repo.GetBank(context.Background(), "default"); err != nil {
		t.Fatalf("get bank: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.GetBank(context.Background(), "default"); err != nil {
		t.Fatalf("get bank 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestBankRepositoryReloadsAfterExpiry(t *testing.T) {
	loader := &countingLoader{BankLoader: NewStaticBankLoader(map[string]domain.QuestionBank{"default": sampleBank()})}
	repo := NewBankRepository(loader, time.Minute)
	now := time.Now()
	repo.clock = func() time.Time { return now }

	_, _ = repo.GetBank(context.Background(), "default")
	now = now.Add(2 * time.Minute)
	_, _ = repo.GetBank(context.Background(), "default")
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, got %d calls", loader.calls)
	}
}

func TestBankRepositoryUnknownBank(t *testing.T) {
	repo := NewBankRepository(NewStaticBankLoader(nil), time.Minute)
	if _, err := repo.GetBank(context.Background(), "missing"); !errors.Is(err, domain.ErrBankNotFound) {
		t.Fatalf("expected bank not found, got %v", err)
	}
}

func TestFileBankLoaderReadsJSON(t *testing.T) {
	dir := t.TempDir()
	raw := `{"categories":[{"id":"c1","name":"Science"}],"questions":[{"id":"q1","categoryId":"c1","text":"H2O?","answer":"Water","points":100,"timeLimit":20}]}`
	if err := os.WriteFile(filepath.Join(dir, "science.json"), []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	bank, err := NewFileBankLoader(dir).LoadBank(context.Background(), "science")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if bank.ID != "science" || len(bank.Questions) != 1 || bank.Questions[0].TimeLimit != 20 {
		t.Fatalf("unexpected bank %+v", bank)
	}

	if _, err := NewFileBankLoader(dir).LoadBank(context.Background(), "history"); !errors.Is(err, domain.ErrBankNotFound) {
		t.Fatalf("expected bank not found, got %v", err)
	}
}

type countingLoader struct {
	BankLoader
	calls int
}

func (l *countingLoader) LoadBank(ctx context.Context, bankID string) (domain.QuestionBank, error) {
	l.calls++
	return l.BankLoader.LoadBank(ctx, bankID)
}

func sampleBank() domain.QuestionBank {
	return domain.QuestionBank{
		ID:         "default",
		Categories: []domain.Category{{ID: "c1", Name: "Math"}},
		Questions: []domain.Question{
			{ID: "q1", CategoryID: "c1", Text: "What is 2 + 2?", Answer: "4", Points: 100},
		},
	}
}
