package telemetry

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rob102-staff/nav-app/models"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic   string
	retain  bool
	payload []byte
}

type fakeClient struct {
	mu           sync.Mutex
	connected    bool
	publishErr   error
	messages     []published
	disconnected bool
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, published{topic: topic, retain: retained, payload: payload.([]byte)})
	return &fakeToken{err: c.publishErr}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
}

func TestPublisher(t *testing.T) {
	Convey("Telemetry publisher tests", t, func() {
		client := &fakeClient{connected: true}
		pub := NewPublisher(client, "lab")
		pub.now = func() time.Time { return time.Unix(1700000000, 0) }

		Convey("Poses are retained on the pose topic", func() {
			err := pub.PublishPose(models.Pose{X: 12.5, Y: 40, Theta: 1}, models.CellIndex{Row: 4, Col: 1})
			So(err, ShouldBeNil)
			So(client.messages, ShouldHaveLength, 1)
			So(client.messages[0].topic, ShouldEqual, "lab/pose")
			So(client.messages[0].retain, ShouldBeTrue)

			var msg PoseMessage
			So(json.Unmarshal(client.messages[0].payload, &msg), ShouldBeNil)
			So(msg, ShouldResemble, PoseMessage{X: 12.5, Y: 40, Theta: 1, Row: 4, Col: 1, Timestamp: 1700000000})
		})

		Convey("Plan requests go to the plan topic", func() {
			err := pub.PublishPlan(PlanMessage{MapName: "maze.map", Start: "[0 0]", Goal: "[3 4]", Algo: "bfs"})
			So(err, ShouldBeNil)
			So(client.messages[0].topic, ShouldEqual, "lab/plan")
			So(client.messages[0].retain, ShouldBeFalse)
			So(string(client.messages[0].payload), ShouldContainSubstring, `"goal":"[3 4]"`)
		})

		Convey("Publishing fails while disconnected", func() {
			client.connected = false
			So(pub.PublishPose(models.Pose{}, models.CellIndex{}), ShouldEqual, ErrNotConnected)
			So(client.messages, ShouldBeEmpty)
		})

		Convey("Broker errors are wrapped", func() {
			brokerErr := errors.New("not authorized")
			client.publishErr = brokerErr
			err := pub.PublishPlan(PlanMessage{})
			So(errors.Is(err, brokerErr), ShouldBeTrue)
		})

		Convey("A nil publisher is a no-op", func() {
			var none *Publisher
			So(none.PublishPose(models.Pose{}, models.CellIndex{}), ShouldBeNil)
			So(none.PublishPlan(PlanMessage{}), ShouldBeNil)
			none.Close()
		})

		Convey("No broker disables telemetry", func() {
			p, err := Connect(Config{})
			So(err, ShouldBeNil)
			So(p, ShouldBeNil)
		})

		Convey("Close disconnects", func() {
			pub.Close()
			So(client.disconnected, ShouldBeTrue)
		})
	})
}
