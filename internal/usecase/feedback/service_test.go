package feedback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"guest-feedback-bot/internal/domain"
)

// recorder собирает порядок обращений ко всем поверхностям.
type recorder struct {
	ops []string
}

func (r *recorder) note(op string) { r.ops = append(r.ops, op) }

type fakeFeedbackRepo struct {
	rec     *recorder
	records map[int64]domain.Feedback
	nextID  int64
	delErr  error
}

func newFakeFeedbackRepo(rec *recorder) *fakeFeedbackRepo {
	return &fakeFeedbackRepo{rec: rec, records: make(map[int64]domain.Feedback), nextID: 1}
}

func (f *fakeFeedbackRepo) UpsertDish(context.Context, string, string) error { return nil }
func (f *fakeFeedbackRepo) DeleteDish(context.Context, string) error         { return nil }
func (f *fakeFeedbackRepo) CountDishes(context.Context) (int, error)         { return 0, nil }
func (f *fakeFeedbackRepo) SearchDishes(context.Context, string, int) ([]string, error) {
	return nil, nil
}
func (f *fakeFeedbackRepo) SearchDishesAllTokens(context.Context, []string, int) ([]string, error) {
	return nil, nil
}

func (f *fakeFeedbackRepo) CreateFeedback(_ context.Context, fb domain.Feedback) (int64, error) {
	id := f.nextID
	f.nextID++
	fb.ID = id
	f.records[id] = fb
	return id, nil
}

func (f *fakeFeedbackRepo) GetFeedback(_ context.Context, id int64) (domain.Feedback, error) {
	fb, ok := f.records[id]
	if !ok {
		return domain.Feedback{}, domain.ErrNotFound
	}
	return fb, nil
}

func (f *fakeFeedbackRepo) UpdateKitchenReply(_ context.Context, id int64, reply string) error {
	if fb, ok := f.records[id]; ok {
		fb.KitchenReply = &reply
		f.records[id] = fb
	}
	return nil
}

func (f *fakeFeedbackRepo) SetPrivateRef(_ context.Context, id int64, ref domain.MessageRef) error {
	fb := f.records[id]
	fb.PrivateRef = &ref
	f.records[id] = fb
	return nil
}

func (f *fakeFeedbackRepo) SetGroupRef(_ context.Context, id int64, ref domain.MessageRef) error {
	fb := f.records[id]
	fb.GroupRef = &ref
	f.records[id] = fb
	return nil
}

func (f *fakeFeedbackRepo) DeleteFeedback(_ context.Context, id int64) error {
	if f.delErr != nil {
		return f.delErr
	}
	f.rec.note("repo.delete")
	delete(f.records, id)
	return nil
}

type fakeSheet struct {
	rec       *recorder
	appendErr error
	updateErr error
	deleteErr error
	appended  []int64
	updated   []int64
	reappend  bool
}

func (f *fakeSheet) AppendRow(_ context.Context, fb domain.Feedback) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.rec.note("sheet.append")
	f.appended = append(f.appended, fb.ID)
	return nil
}

func (f *fakeSheet) UpdateRow(_ context.Context, fb domain.Feedback) (bool, error) {
	if f.updateErr != nil {
		return false, f.updateErr
	}
	f.rec.note("sheet.update")
	f.updated = append(f.updated, fb.ID)
	return f.reappend, nil
}

func (f *fakeSheet) DeleteRow(_ context.Context, id int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.rec.note("sheet.delete")
	return nil
}

type fakeMessenger struct {
	rec     *recorder
	nextMsg int
	sendErr error
	editErr error
	edits   []domain.MessageRef
}

func (f *fakeMessenger) SendText(chatID int64, _ string) (domain.MessageRef, error) {
	if f.sendErr != nil {
		return domain.MessageRef{}, f.sendErr
	}
	f.nextMsg++
	f.rec.note("msg.send")
	return domain.MessageRef{ChatID: chatID, MessageID: f.nextMsg}, nil
}

func (f *fakeMessenger) SendWithMarkup(chatID int64, text string, _ any) (domain.MessageRef, error) {
	return f.SendText(chatID, text)
}

func (f *fakeMessenger) EditText(ref domain.MessageRef, _ string, _ any) error {
	if f.editErr != nil {
		return f.editErr
	}
	f.rec.note("msg.edit")
	f.edits = append(f.edits, ref)
	return nil
}

func (f *fakeMessenger) DeleteMessage(ref domain.MessageRef) error {
	if ref.ChatID < 0 {
		f.rec.note("msg.delete.group")
	} else {
		f.rec.note("msg.delete.card")
	}
	return nil
}

func (f *fakeMessenger) AnswerCallback(string) error { return nil }

func noMarkup(int64) any { return nil }

func newTestService(repo *fakeFeedbackRepo, sheet *fakeSheet, msngr *fakeMessenger, groupChat int64) *Service {
	return NewService(repo, repo, sheet, msngr, zerolog.Nop(), groupChat, noMarkup)
}

func sampleFeedback(reply *string) domain.Feedback {
	return domain.Feedback{
		Date:         time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC),
		DishName:     "Борщ",
		GuestComment: "остыл",
		KitchenReply: reply,
	}
}

func TestCreateSyncsAllSurfaces(t *testing.T) {
	rec := &recorder{}
	repo := newFakeFeedbackRepo(rec)
	sheet := &fakeSheet{rec: rec}
	msngr := &fakeMessenger{rec: rec}
	svc := newTestService(repo, sheet, msngr, -100)

	reply := "переделали"
	fb, report, err := svc.Create(context.Background(), 42, sampleFeedback(&reply))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(report.Warnings()) != 0 {
		t.Fatalf("не ожидали предупреждений: %v", report.Warnings())
	}
	if fb.ID == 0 {
		t.Fatalf("запись должна получить идентификатор")
	}
	if fb.PrivateRef == nil || fb.PrivateRef.ChatID != 42 {
		t.Fatalf("ссылка на карточку не сохранена")
	}
	if fb.GroupRef == nil || fb.GroupRef.ChatID != -100 {
		t.Fatalf("ссылка на зеркало в группе не сохранена")
	}
	if len(sheet.appended) != 1 || sheet.appended[0] != fb.ID {
		t.Fatalf("строка не добавлена в таблицу")
	}
	stored, err := repo.GetFeedback(context.Background(), fb.ID)
	if err != nil || stored.PrivateRef == nil || stored.GroupRef == nil {
		t.Fatalf("ссылки должны сохраняться в хранилище")
	}
}

func TestCreateWithoutReplySkipsGroup(t *testing.T) {
	rec := &recorder{}
	repo := newFakeFeedbackRepo(rec)
	sheet := &fakeSheet{rec: rec}
	msngr := &fakeMessenger{rec: rec}
	svc := newTestService(repo, sheet, msngr, -100)

	fb, _, err := svc.Create(context.Background(), 42, sampleFeedback(nil))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if fb.GroupRef != nil {
		t.Fatalf("запись без ответа кухни не зеркалируется в группу")
	}
}

func TestCreateCardFailureIsWarningNotError(t *testing.T) {
	rec := &recorder{}
	repo := newFakeFeedbackRepo(rec)
	sheet := &fakeSheet{rec: rec}
	msngr := &fakeMessenger{rec: rec, sendErr: errors.New("телеграм недоступен")}
	svc := newTestService(repo, sheet, msngr, 0)

	fb, report, err := svc.Create(context.Background(), 42, sampleFeedback(nil))
	if err != nil {
		t.Fatalf("сбой карточки не должен откатывать запись: %v", err)
	}
	if report.Card == nil {
		t.Fatalf("ожидали предупреждение о карточке")
	}
	if len(sheet.appended) != 1 {
		t.Fatalf("таблица должна обновляться независимо от карточки")
	}
	if _, err := repo.GetFeedback(context.Background(), fb.ID); err != nil {
		t.Fatalf("запись должна остаться в хранилище")
	}
}

func TestUpdateReplyEditsCardInPlace(t *testing.T) {
	rec := &recorder{}
	repo := newFakeFeedbackRepo(rec)
	sheet := &fakeSheet{rec: rec}
	msngr := &fakeMessenger{rec: rec}
	svc := newTestService(repo, sheet, msngr, 0)

	fb, _, err := svc.Create(context.Background(), 42, sampleFeedback(nil))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	cardRef := *fb.PrivateRef

	updated, report, found, err := svc.UpdateReply(context.Background(), fb.ID, "переделали")
	if err != nil || !found {
		t.Fatalf("ожидали успешное обновление: %v", err)
	}
	if len(report.Warnings()) != 0 {
		t.Fatalf("не ожидали предупреждений: %v", report.Warnings())
	}
	if !updated.HasReply() || updated.Reply() != "переделали" {
		t.Fatalf("ответ кухни не сохранён")
	}
	if len(msngr.edits) != 1 || msngr.edits[0] != cardRef {
		t.Fatalf("карточка должна правиться на месте, без повторной отправки")
	}
	if len(sheet.updated) != 1 {
		t.Fatalf("строка таблицы должна обновляться")
	}
}

func TestUpdateReplyReappendsMissingRow(t *testing.T) {
	rec := &recorder{}
	repo := newFakeFeedbackRepo(rec)
	sheet := &fakeSheet{rec: rec, reappend: true}
	msngr := &fakeMessenger{rec: rec}
	svc := newTestService(repo, sheet, msngr, 0)

	fb, _, err := svc.Create(context.Background(), 42, sampleFeedback(nil))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	_, report, found, err := svc.UpdateReply(context.Background(), fb.ID, "переделали")
	if err != nil || !found {
		t.Fatalf("повторное добавление строки — не ошибка: %v", err)
	}
	if len(report.Warnings()) != 0 {
		t.Fatalf("не ожидали предупреждений: %v", report.Warnings())
	}
}

func TestUpdateReplyMissingRecord(t *testing.T) {
	rec := &recorder{}
	repo := newFakeFeedbackRepo(rec)
	svc := newTestService(repo, &fakeSheet{rec: rec}, &fakeMessenger{rec: rec}, 0)

	_, _, found, err := svc.UpdateReply(context.Background(), 999, "ответ")
	if err != nil {
		t.Fatalf("исчезнувшая запись — не ошибка: %v", err)
	}
	if found {
		t.Fatalf("ожидали found=false")
	}
}

func TestDeleteOrderAndCompletion(t *testing.T) {
	rec := &recorder{}
	repo := newFakeFeedbackRepo(rec)
	sheet := &fakeSheet{rec: rec}
	msngr := &fakeMessenger{rec: rec}
	svc := newTestService(repo, sheet, msngr, -100)

	reply := "переделали"
	fb, _, err := svc.Create(context.Background(), 42, sampleFeedback(&reply))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	rec.ops = nil
	report, err := svc.Delete(context.Background(), fb.ID)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(report.Warnings()) != 0 {
		t.Fatalf("не ожидали предупреждений: %v", report.Warnings())
	}

	expected := []string{"msg.delete.group", "msg.delete.card", "sheet.delete", "repo.delete"}
	if len(rec.ops) != len(expected) {
		t.Fatalf("ожидали %v, получили %v", expected, rec.ops)
	}
	for i, op := range expected {
		if rec.ops[i] != op {
			t.Fatalf("нарушен порядок удаления: ожидали %v, получили %v", expected, rec.ops)
		}
	}
	if _, err := repo.GetFeedback(context.Background(), fb.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("запись должна исчезнуть из хранилища")
	}
}

func TestDeleteSheetFailureStillDeletesRecord(t *testing.T) {
	rec := &recorder{}
	repo := newFakeFeedbackRepo(rec)
	sheet := &fakeSheet{rec: rec, deleteErr: errors.New("таблица недоступна")}
	msngr := &fakeMessenger{rec: rec}
	svc := newTestService(repo, sheet, msngr, 0)

	fb, _, err := svc.Create(context.Background(), 42, sampleFeedback(nil))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	report, err := svc.Delete(context.Background(), fb.ID)
	if err != nil {
		t.Fatalf("сбой таблицы не должен блокировать удаление: %v", err)
	}
	if report.Sheet == nil {
		t.Fatalf("ожидали предупреждение о таблице")
	}
	if _, err := repo.GetFeedback(context.Background(), fb.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("запись должна исчезнуть из хранилища")
	}
}

func TestDeleteMissingIsIdempotent(t *testing.T) {
	rec := &recorder{}
	repo := newFakeFeedbackRepo(rec)
	svc := newTestService(repo, &fakeSheet{rec: rec}, &fakeMessenger{rec: rec}, 0)

	report, err := svc.Delete(context.Background(), 999)
	if err != nil {
		t.Fatalf("повторное удаление — не ошибка: %v", err)
	}
	if len(report.Warnings()) != 0 {
		t.Fatalf("не ожидали предупреждений")
	}
}
