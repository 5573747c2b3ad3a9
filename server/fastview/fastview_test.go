package fastview

import (
	"fmt"
	"testing"

	"github.com/rob102-staff/nav-app/render"
	. "github.com/smartystreets/goconvey/convey"
)

func paint(layer string, x float64) render.PaintOp {
	return render.PaintOp{Layer: layer, Kind: render.PaintFill, X: x, Color: "#000000"}
}

func TestFrame(t *testing.T) {
	Convey("When frames are merged", t, func() {
		first := Frame{
			Paints:  []render.PaintOp{paint("map", 1)},
			Updates: []EleUpdate{Text("a", "1"), Text("b", "1")},
		}

		Convey("Paints are kept in order and updates are overwritten by element", func() {
			merged := first.Merge(Frame{
				Paints:  []render.PaintOp{paint("map", 2)},
				Updates: []EleUpdate{Text("b", "2"), Text("c", "2")},
			})
			So(merged.Reset, ShouldBeFalse)
			So(merged.Paints, ShouldResemble, []render.PaintOp{paint("map", 1), paint("map", 2)})
			So(merged.Updates, ShouldResemble, []EleUpdate{Text("a", "1"), Text("b", "2"), Text("c", "2")})
		})

		Convey("A reset erases the paints before it", func() {
			merged := first.Merge(Frame{Reset: true, Paints: []render.PaintOp{paint("marked", 3)}})
			So(merged.Reset, ShouldBeTrue)
			So(merged.Paints, ShouldResemble, []render.PaintOp{paint("marked", 3)})
			So(merged.Updates, ShouldHaveLength, 2)
		})

		Convey("Merging does not modify the original", func() {
			_ = first.Merge(Frame{Updates: []EleUpdate{Text("a", "9")}})
			So(first.Updates[0].Ops[0].Value, ShouldEqual, "1")
		})

		So(Frame{}.Empty(), ShouldBeTrue)
		So(Frame{Reset: true}.Empty(), ShouldBeFalse)
	})
}

func TestHub(t *testing.T) {
	Convey("When a hub fans out frames", t, func() {
		hub := NewHub(2)
		frame := Frame{Updates: []EleUpdate{Text("status-msg", "hi")}}

		Convey("Every subscriber gets its initial frame then each published frame", func() {
			initial := Frame{Reset: true}
			_, a := hub.Subscribe(initial)
			_, b := hub.Subscribe(Frame{})
			So(hub.Count(), ShouldEqual, 2)

			So(hub.Publish(frame), ShouldEqual, 0)
			So(<-a, ShouldResemble, initial)
			So(<-a, ShouldResemble, frame)
			So(<-b, ShouldResemble, frame)
		})

		Convey("Empty frames are not sent", func() {
			_, a := hub.Subscribe(Frame{})
			hub.Publish(Frame{})
			So(a, ShouldHaveLength, 0)
		})

		Convey("A subscriber that falls behind is dropped and its channel closed", func() {
			var logged []string
			saved := Logf
			Logf = func(format string, v ...interface{}) { logged = append(logged, fmt.Sprintf(format, v...)) }
			defer func() { Logf = saved }()

			id, slow := hub.Subscribe(Frame{})
			So(hub.Publish(frame), ShouldEqual, 0)
			So(hub.Publish(frame), ShouldEqual, 0)
			So(hub.Publish(frame), ShouldEqual, 1)
			So(hub.Count(), ShouldEqual, 0)
			So(logged, ShouldHaveLength, 1)
			So(logged[0], ShouldContainSubstring, id.String())
			So(logged[0], ShouldContainSubstring, "too slow")

			<-slow
			<-slow
			_, open := <-slow
			So(open, ShouldBeFalse)
		})

		Convey("Unsubscribe closes the channel once", func() {
			id, frames := hub.Subscribe(Frame{})
			hub.Unsubscribe(id)
			hub.Unsubscribe(id)
			_, open := <-frames
			So(open, ShouldBeFalse)
		})

		Convey("Close drops everyone", func() {
			_, frames := hub.Subscribe(Frame{})
			hub.Close()
			So(hub.Count(), ShouldEqual, 0)
			_, open := <-frames
			So(open, ShouldBeFalse)
		})
	})
}

func TestDrain(t *testing.T) {
	Convey("drain merges queued frames into one write", t, func() {
		frames := make(chan Frame, 4)
		frames <- Frame{Updates: []EleUpdate{Text("a", "2")}}
		frames <- Frame{Paints: []render.PaintOp{paint("map", 1)}}

		merged := drain(Frame{Updates: []EleUpdate{Text("a", "1")}}, frames)
		So(merged.Updates, ShouldResemble, []EleUpdate{Text("a", "2")})
		So(merged.Paints, ShouldHaveLength, 1)
		So(frames, ShouldHaveLength, 0)
	})
}
