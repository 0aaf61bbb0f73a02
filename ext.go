package tobytes

// Reserved msgpack extension ids this package interprets (spec §3, §6).
// Any other ext id encountered by the decoder is KindDisallowedExtension.
const (
	extIntern    int8 = 0x06
	extNamespace int8 = 0x07
	extCustom    int8 = 0x08
)
