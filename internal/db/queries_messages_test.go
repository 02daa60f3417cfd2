package db

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/adamavenir/chatcache/internal/types"
)

func TestQueryAfterReturnsBoundedPage(t *testing.T) {
	db := openTestDB(t)
	requireSchema(t, db)

	var batch []types.CachedMessage
	for i := int64(1); i <= 5; i++ {
		batch = append(batch, message(fmt.Sprintf("m%d", i), "c1", 1000+i, intPtr(i)))
	}
	if err := UpsertMessages(db, batch); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	page, err := GetMessagesAfter(db, "c1", 2, 2)
	if err != nil {
		t.Fatalf("get after: %v", err)
	}
	if got, want := ids(page), []string{"m3", "m4"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestQueryAfterProperties(t *testing.T) {
	db := openTestDB(t)
	requireSchema(t, db)

	// send times intentionally out of seq order
	var batch []types.CachedMessage
	for i := int64(1); i <= 20; i++ {
		batch = append(batch, message(fmt.Sprintf("m%02d", i), "c1", 5000-(i%7)*10+i, intPtr(i)))
	}
	batch = append(batch, message("noseq", "c1", 10, nil))
	batch = append(batch, message("other", "c2", 10, intPtr(99)))
	if err := UpsertMessages(db, batch); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	cases := []struct {
		after int64
		limit int
	}{
		{0, 5}, {3, 1}, {10, 50}, {19, 3}, {20, 10}, {-1, 100},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("after=%d/limit=%d", tc.after, tc.limit), func(t *testing.T) {
			page, err := GetMessagesAfter(db, "c1", tc.after, tc.limit)
			if err != nil {
				t.Fatalf("get after: %v", err)
			}
			if len(page) > tc.limit {
				t.Fatalf("returned %d rows for limit %d", len(page), tc.limit)
			}
			for i, m := range page {
				if m.ChatID != "c1" {
					t.Fatalf("row from wrong chat: %s", m.ChatID)
				}
				if m.Seq == nil || *m.Seq <= tc.after {
					t.Fatalf("row %s violates cursor %d", m.MsgID, tc.after)
				}
				if i > 0 && page[i-1].SendTimeMs > m.SendTimeMs {
					t.Fatalf("rows not ordered by send time")
				}
			}
		})
	}
}

func TestQueryAfterDefaultLimit(t *testing.T) {
	db := openTestDB(t)
	requireSchema(t, db)

	var batch []types.CachedMessage
	for i := int64(1); i <= DefaultPageSize+10; i++ {
		batch = append(batch, message(fmt.Sprintf("m%03d", i), "c1", i, intPtr(i)))
	}
	if err := UpsertMessages(db, batch); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	page, err := GetMessagesAfter(db, "c1", 0, 0)
	if err != nil {
		t.Fatalf("get after: %v", err)
	}
	if len(page) != DefaultPageSize {
		t.Fatalf("expected %d rows, got %d", DefaultPageSize, len(page))
	}
}

func TestGetMessagesBefore(t *testing.T) {
	db := openTestDB(t)
	requireSchema(t, db)

	if err := UpsertMessages(db, []types.CachedMessage{
		message("a", "c1", 100, nil),
		message("b", "c1", 200, nil),
		message("c", "c1", 300, nil),
		message("d", "c1", 400, nil),
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	page, err := GetMessagesBefore(db, "c1", 400, 2)
	if err != nil {
		t.Fatalf("get before: %v", err)
	}
	if got, want := ids(page), []string{"b", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestUpsertMessageReplacesAndKeepsOrder(t *testing.T) {
	db := openTestDB(t)
	requireSchema(t, db)

	if err := UpsertMessages(db, []types.CachedMessage{
		message("m2", "c1", 200, intPtr(2)),
		message("m1", "c1", 100, intPtr(1)),
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	edited := message("m1", "c1", 100, intPtr(1))
	edited.Text = strPtr("edited body")
	edited.EditTimeMs = intPtr(150)
	if err := UpsertMessage(db, edited); err != nil {
		t.Fatalf("upsert edit: %v", err)
	}

	all, err := GetMessages(db, "c1")
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	if got, want := ids(all), []string{"m1", "m2"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if all[0].Text == nil || *all[0].Text != "edited body" {
		t.Fatalf("edit not applied: %+v", all[0])
	}
	if all[0].EditTimeMs == nil || *all[0].EditTimeMs != 150 {
		t.Fatalf("edit time not stored: %+v", all[0])
	}

	count, err := CountMessages(db, "c1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 messages, got %d", count)
	}
}

func TestGetMessageRoundTripsOptionalFields(t *testing.T) {
	db := openTestDB(t)
	requireSchema(t, db)

	cmdType := 2
	m := message("m1", "c1", 100, intPtr(9))
	m.ContentType = types.ContentFile
	m.Direction = types.DirectionOutbound
	m.FileName = strPtr("report.pdf")
	m.FileURL = strPtr("https://files.invalid/report.pdf")
	m.QuoteMsgID = strPtr("m0")
	m.QuoteText = strPtr("quoted")
	m.DeleteTimeMs = intPtr(300)
	m.CmdName = strPtr("/weather")
	m.CmdType = &cmdType
	m.LocalInsertTimeMs = 777
	if err := UpsertMessage(db, m); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := GetMessage(db, "m1")
	if err != nil {
		t.Fatalf("get message: %v", err)
	}
	if !reflect.DeepEqual(*got, m) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", *got, m)
	}

	missing, err := GetMessage(db, "nope")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil for missing message")
	}
}

func TestUpsertMessagesStampsInsertTime(t *testing.T) {
	db := openTestDB(t)
	requireSchema(t, db)

	prev := nowMillis
	nowMillis = func() int64 { return 42_000 }
	t.Cleanup(func() { nowMillis = prev })

	if err := UpsertMessage(db, message("m1", "c1", 1, nil)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := GetMessage(db, "m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LocalInsertTimeMs != 42_000 {
		t.Fatalf("expected stamped insert time, got %d", got.LocalInsertTimeMs)
	}
}

func TestPruneMessagesOlderThan(t *testing.T) {
	db := openTestDB(t)
	requireSchema(t, db)

	var batch []types.CachedMessage
	for i := int64(0); i < 10; i++ {
		m := message(fmt.Sprintf("m%d", i), "c1", i, intPtr(i))
		m.LocalInsertTimeMs = 1000 + i*100
		batch = append(batch, m)
	}
	if err := UpsertMessages(db, batch); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	const threshold = 1500
	chats, err := ChatsWithMessagesOlderThan(db, threshold)
	if err != nil {
		t.Fatalf("chats older: %v", err)
	}
	if !reflect.DeepEqual(chats, []string{"c1"}) {
		t.Fatalf("unexpected chats: %v", chats)
	}

	removed, err := PruneMessagesOlderThan(db, threshold)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 5 {
		t.Fatalf("expected 5 removed, got %d", removed)
	}

	remaining, err := GetMessages(db, "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(remaining) != 5 {
		t.Fatalf("expected 5 remaining, got %d", len(remaining))
	}
	for _, m := range remaining {
		if m.LocalInsertTimeMs < threshold {
			t.Fatalf("message %s should have been pruned", m.MsgID)
		}
	}
}

func TestLatestSeqAndDeletes(t *testing.T) {
	db := openTestDB(t)
	requireSchema(t, db)

	seq, err := LatestSeq(db, "c1")
	if err != nil {
		t.Fatalf("latest seq: %v", err)
	}
	if seq != nil {
		t.Fatalf("expected nil seq for empty chat, got %d", *seq)
	}

	if err := UpsertMessages(db, []types.CachedMessage{
		message("m1", "c1", 1, intPtr(3)),
		message("m2", "c1", 2, intPtr(8)),
		message("m3", "c1", 3, nil),
		message("m4", "c2", 3, intPtr(1)),
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	seq, err = LatestSeq(db, "c1")
	if err != nil {
		t.Fatalf("latest seq: %v", err)
	}
	if seq == nil || *seq != 8 {
		t.Fatalf("expected latest seq 8, got %v", seq)
	}

	n, err := DeleteMessagesForConversation(db, "c1")
	if err != nil {
		t.Fatalf("delete chat: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 removed, got %d", n)
	}
	n, err = DeleteAllMessages(db)
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 removed, got %d", n)
	}
}

func TestIsConstraintError(t *testing.T) {
	db := openTestDB(t)
	requireSchema(t, db)

	_, err := db.Exec(`INSERT INTO cached_conversations (chat_id, chat_type, last_update_ms, unread_count, cached_at_ms) VALUES ('c1', 1, 0, -5, 0)`)
	if err == nil {
		t.Fatal("expected check constraint failure")
	}
	if !isConstraintError(err) {
		t.Fatalf("expected constraint error, got %v", err)
	}
	if isConstraintError(fmt.Errorf("plain")) {
		t.Fatal("plain error is not a constraint error")
	}
}

func TestPruneMessagesReportsChatsAtomically(t *testing.T) {
	db := openTestDB(t)
	requireSchema(t, db)

	old1 := message("m1", "c1", 1, intPtr(1))
	old1.LocalInsertTimeMs = 1000
	old2 := message("m2", "c2", 1, intPtr(1))
	old2.LocalInsertTimeMs = 1100
	fresh := message("m3", "c3", 1, intPtr(1))
	fresh.LocalInsertTimeMs = 5000
	if err := UpsertMessages(db, []types.CachedMessage{old1, old2, fresh}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	chats, removed, err := PruneMessages(db, 2000)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 2 || !reflect.DeepEqual(chats, []string{"c1", "c2"}) {
		t.Fatalf("unexpected prune result: removed=%d chats=%v", removed, chats)
	}
	if count, _ := CountMessages(db, "c3"); count != 1 {
		t.Fatalf("fresh message should survive, got %d", count)
	}

	chats, removed, err = PruneMessages(db, 2000)
	if err != nil || removed != 0 || len(chats) != 0 {
		t.Fatalf("second prune should be empty: removed=%d chats=%v err=%v", removed, chats, err)
	}
}

func TestDeleteMessage(t *testing.T) {
	db := openTestDB(t)
	requireSchema(t, db)

	if err := UpsertMessages(db, []types.CachedMessage{
		message("m1", "c1", 100, intPtr(1)),
		message("m2", "c1", 200, intPtr(2)),
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	chatID, err := DeleteMessage(db, "m1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if chatID != "c1" {
		t.Fatalf("expected chat c1, got %q", chatID)
	}
	remaining, _ := GetMessages(db, "c1")
	if !reflect.DeepEqual(ids(remaining), []string{"m2"}) {
		t.Fatalf("unexpected remaining: %v", ids(remaining))
	}

	chatID, err = DeleteMessage(db, "m1")
	if err != nil || chatID != "" {
		t.Fatalf("deleting an absent message should be a no-op, got %q err=%v", chatID, err)
	}
}
