package hub

import "testing"

func TestFCTimestampToUnix(t *testing.T) {
	got, ok := FCTimestampToUnix(0)
	if !ok || got != int64(hubEpochOffsetSeconds) {
		t.Fatalf("FCTimestampToUnix(0) = (%d, %v), want (%d, true)", got, ok, hubEpochOffsetSeconds)
	}

	got, ok = FCTimestampToUnix(100)
	if !ok || got != int64(hubEpochOffsetSeconds)+100 {
		t.Fatalf("FCTimestampToUnix(100) = (%d, %v)", got, ok)
	}
}

func TestFCTimestampToUnix_Overflow(t *testing.T) {
	_, ok := FCTimestampToUnix(^uint64(0))
	if ok {
		t.Fatal("expected overflow to report ok=false")
	}
}

func TestDecodeLinkActions(t *testing.T) {
	msgs := []Message{
		{Data: &MessageData{Type: MessageTypeLinkAdd, FID: 1, Timestamp: 10, LinkBody: &LinkBody{TargetFID: 2}}},
		{Data: &MessageData{Type: MessageTypeLinkRemove, FID: 1, Timestamp: 20, LinkBody: &LinkBody{TargetFID: 3}}},
		{Data: &MessageData{Type: MessageTypeUserDataAdd, FID: 1}}, // no LinkBody, skipped
		{Data: nil}, // skipped
	}

	actions := DecodeLinkActions(msgs)
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	if actions[0].Kind != LinkActionAdd || actions[0].SourceFID != 1 || actions[0].TargetFID != 2 {
		t.Errorf("unexpected first action: %+v", actions[0])
	}
	if actions[1].Kind != LinkActionRemove || actions[1].SourceFID != 1 || actions[1].TargetFID != 3 {
		t.Errorf("unexpected second action: %+v", actions[1])
	}
}

func TestDecodeLinkActions_Empty(t *testing.T) {
	if got := DecodeLinkActions(nil); len(got) != 0 {
		t.Fatalf("expected no actions, got %v", got)
	}
}
