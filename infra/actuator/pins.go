package actuator

// DefaultPins maps channel i to the BCM line driving relay i+1 on the
// 19 channel board.
var DefaultPins = []int{4, 17, 18, 27, 22, 23, 24, 25, 5, 6, 12, 13, 19, 16, 26, 20, 21, 7, 8}

// DefaultChannels is the number of channels of the stock board.
const DefaultChannels = 19
