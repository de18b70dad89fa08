package redisx

const ns = "karago:v1"

func ChannelVisitsChanged() string {
	return ns + ":visits:changed"
}
