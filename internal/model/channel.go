package model

// Channel identifies one independent source of evidence.
type Channel string

const (
	// ChannelAudio covers decoded audio windows.
	ChannelAudio Channel = "audio"

	// ChannelVideo covers decoded video frames.
	ChannelVideo Channel = "video"

	// ChannelMetadata covers container and EXIF metadata.
	ChannelMetadata Channel = "metadata"
)

// Channels returns every channel in canonical order.
// Reports, weight tables and tie-breaks all follow this order.
func Channels() []Channel {
	return []Channel{ChannelAudio, ChannelVideo, ChannelMetadata}
}

// Order returns the canonical position of the channel, or len(Channels())
// for an unknown channel so that unknown values sort last.
func (c Channel) Order() int {
	switch c {
	case ChannelAudio:
		return 0
	case ChannelVideo:
		return 1
	case ChannelMetadata:
		return 2
	default:
		return 3
	}
}

// Valid reports whether c is one of the known channels.
func (c Channel) Valid() bool {
	return c.Order() < 3
}

// String returns the channel name.
func (c Channel) String() string {
	return string(c)
}

// ParseChannel converts a user-supplied channel name into a Channel.
func ParseChannel(s string) (Channel, bool) {
	c := Channel(s)
	return c, c.Valid()
}
