package a

/* want "marker is not attached to a function declaration" */ //sledgehammer:trace
var x = 1

var (
	/* want "marker is not attached" */ //sledgehammer:trace
	y = 2
)

/* want "marker is not attached" */ //sledgehammer:trace
type S struct{}

//sledgehammer:trace
func traced() {
	/* want "marker is not attached" */ //sledgehammer:trace
	_ = x + y
}

// documented is described here.
//
//sledgehammer:trace
func documented() {}

/* want "function external has no body and cannot be traced" */ //sledgehammer:trace
func external()

//sledgehammer:tracex
func notAMarker() {}

//sledgehammer:trace
func (S) method() {}

/* want "marker is not attached" */ //sledgehammer:trace

func detached() {}

/* want "takes no options" */ //sledgehammer:trace please
func options() {}
