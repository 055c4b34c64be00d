package collab

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/flowcanvas/flowcanvas/pkg/channels/gochannel"
	"github.com/flowcanvas/flowcanvas/pkg/eventbus"
	"github.com/flowcanvas/flowcanvas/pkg/events"
	"github.com/flowcanvas/flowcanvas/pkg/graph"
	"github.com/flowcanvas/flowcanvas/pkg/mocks"
	"github.com/flowcanvas/flowcanvas/pkg/model"
	"github.com/flowcanvas/flowcanvas/pkg/shared"
)

type editor struct {
	graph  *graph.WorkflowGraph
	shared *shared.SharedGraph
	bridge *Bridge
}

func newPubSub(t *testing.T) (message.Publisher, message.Subscriber) {
	t.Helper()

	publisher, subscriber, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	return publisher, subscriber
}

// joinEditor spins up one editing site on the given pubsub and starts its bridge.
func joinEditor(t *testing.T, pub message.Publisher, sub message.Subscriber, workflowID uint64, siteID string) *editor {
	t.Helper()

	g := graph.NewWorkflowGraph()
	sg := shared.NewSharedGraph(siteID, g)
	bus := eventbus.NewWatermillEventBus(pub, sub)

	e := &editor{graph: g, shared: sg, bridge: NewBridge(bus, sg, workflowID, siteID)}
	require.NoError(t, e.bridge.Start(context.Background()))

	return e
}

func scanOperator(id string) model.Operator {
	return model.Operator{
		OperatorID:   id,
		OperatorType: "table-scan",
		OutputPorts:  []model.Port{{PortID: "out"}},
	}
}

func TestBridge_LocalEditReachesPeer(t *testing.T) {
	pub, sub := newPubSub(t)
	alice := joinEditor(t, pub, sub, 42, "site-a")
	bob := joinEditor(t, pub, sub, 42, "site-b")

	require.NoError(t, alice.graph.AddOperator(scanOperator("scan-1")))

	require.Eventually(t, func() bool {
		return bob.graph.HasOperator("scan-1")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBridge_JoinerBootstrapsFromPeerState(t *testing.T) {
	pub, sub := newPubSub(t)
	alice := joinEditor(t, pub, sub, 42, "site-a")

	require.NoError(t, alice.graph.AddOperator(scanOperator("scan-1")))
	require.NoError(t, alice.shared.SetOperatorPosition("scan-1", model.Point{X: 9, Y: 9}))

	bob := joinEditor(t, pub, sub, 42, "site-b")

	require.Eventually(t, func() bool {
		return bob.graph.HasOperator("scan-1")
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		position, ok := bob.shared.OperatorPosition("scan-1")

		return ok && position == (model.Point{X: 9, Y: 9})
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBridge_OtherWorkflowUpdatesIgnored(t *testing.T) {
	pub, sub := newPubSub(t)
	alice := joinEditor(t, pub, sub, 42, "site-a")
	other := joinEditor(t, pub, sub, 7, "site-z")

	require.NoError(t, other.graph.AddOperator(scanOperator("foreign-1")))

	time.Sleep(100 * time.Millisecond)
	assert.False(t, alice.graph.HasOperator("foreign-1"))
}

func TestBridge_StopAnnouncesDeparture(t *testing.T) {
	ctx := context.Background()

	bus := &mocks.MockEventBus{}
	bus.On("Publish", ctx, "42", mock.MatchedBy(func(event eventbus.Event) bool {
		return event.GetType() == events.EditorLeftEvent
	})).Return(nil)

	g := graph.NewWorkflowGraph()
	bridge := NewBridge(bus, shared.NewSharedGraph("site-a", g), 42, "site-a")

	require.NoError(t, bridge.Stop(ctx))
	bus.AssertExpectations(t)
}
