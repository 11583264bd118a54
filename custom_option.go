package rtcencoder

type Option interface {
	option()
}

type Options []Option

// OptionCommons is embedded into option types to make them satisfy Option.
type OptionCommons struct{}

func (OptionCommons) option() {}

// GetOption returns the last option of type T, so that later options
// override earlier ones.
func GetOption[T Option](in Options) (T, bool) {
	for idx := len(in) - 1; idx >= 0; idx-- {
		v, ok := in[idx].(T)
		if ok {
			return v, true
		}
	}

	var zeroValue T
	return zeroValue, false
}
