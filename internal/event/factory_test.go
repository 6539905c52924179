package event

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var idPattern = regexp.MustCompile(`^evt_\d{13}_\d{3}$`)

func TestCreateValidatesSource(t *testing.T) {
	f := NewFactory(nil)
	_, err := f.Create("bogus", LevelInfo, Payload{"a": 1})
	require.Error(t, err)
}

func TestCreateValidatesLevel(t *testing.T) {
	f := NewFactory(nil)
	_, err := f.Create(SourceVite, "bogus", Payload{"a": 1})
	require.Error(t, err)
}

func TestCreateRejectsNilPayload(t *testing.T) {
	f := NewFactory(nil)
	_, err := f.Create(SourceVite, LevelInfo, nil)
	require.Error(t, err)
}

func TestCreateIDFormat(t *testing.T) {
	f := NewFactory(nil)
	e, err := f.Create(SourceVite, LevelInfo, Payload{"message": "hi"})
	require.NoError(t, err)
	require.Regexp(t, idPattern, e.ID)
}

func TestConsecutiveCallsInSameTickAreAdjacent(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	f := NewFactory(func() time.Time { return fixed })

	e1, _ := f.Create(SourceVite, LevelInfo, Payload{})
	e2, _ := f.Create(SourceVite, LevelInfo, Payload{})
	e3, _ := f.Create(SourceVite, LevelInfo, Payload{})

	require.Equal(t, "evt_1700000000000_001", e1.ID)
	require.Equal(t, "evt_1700000000000_002", e2.ID)
	require.Equal(t, "evt_1700000000000_003", e3.ID)
	require.GreaterOrEqual(t, e2.TS, e1.TS)
	require.GreaterOrEqual(t, e3.TS, e2.TS)
}

func TestSequenceResetsAfterTickGap(t *testing.T) {
	tick := time.UnixMilli(1_700_000_000_000)
	f := NewFactory(func() time.Time { return tick })

	e1, _ := f.Create(SourceVite, LevelInfo, Payload{})
	require.Equal(t, "evt_1700000000000_001", e1.ID)

	tick = tick.Add(10 * time.Millisecond)
	e2, _ := f.Create(SourceVite, LevelInfo, Payload{})
	require.Equal(t, "evt_1700000000010_001", e2.ID)
}

func TestCreateClonesPayload(t *testing.T) {
	f := NewFactory(nil)
	p := Payload{"a": 1}
	e, err := f.Create(SourceVite, LevelInfo, p)
	require.NoError(t, err)
	p["a"] = 2
	require.Equal(t, 1, e.Payload["a"])
}

func TestInteractionFactoryAssignsID(t *testing.T) {
	f := NewInteractionFactory(nil)
	in := f.Create(Interaction{Type: "click"})
	require.Regexp(t, `^int_\d{13}_\d{3}$`, in.ID)
	require.Equal(t, "click", in.Type)
}

func TestRuleIDFactory(t *testing.T) {
	f := NewRuleIDFactory(nil)
	id := f.Next()
	require.Regexp(t, `^rule_\d{13}_\d{3}$`, id)
}
