package eventcore

// PostOrder is the five-valued ordering key used to sort subscribers of the
// same event type. Lower values fire first. The values are offset so that
// Normal is the zero value.
type PostOrder int

const (
	// First runs before every other order.
	First PostOrder = iota - 2
	// Early runs after First, before Normal.
	Early
	// Normal is the default order for explicit and reflective registration.
	Normal
	// Late runs after Normal, before Last.
	Late
	// Last runs after every other order.
	Last
)

// ParseOrder converts the string form used by config.BusConfig.DefaultOrder
// into a PostOrder, defaulting to Normal for an unrecognized value.
func ParseOrder(s string) PostOrder {
	switch s {
	case "FIRST":
		return First
	case "EARLY":
		return Early
	case "LATE":
		return Late
	case "LAST":
		return Last
	default:
		return Normal
	}
}

// String renders the order for logging.
func (o PostOrder) String() string {
	switch o {
	case First:
		return "FIRST"
	case Early:
		return "EARLY"
	case Normal:
		return "NORMAL"
	case Late:
		return "LATE"
	case Last:
		return "LAST"
	default:
		return "UNKNOWN"
	}
}
