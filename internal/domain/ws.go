package domain

const (
	WsChannelNetworkSpeed = "traffic_stats/network_speed"
	WsEventNetworkSpeed   = "network_speed"
)

const (
	WsSubscribe   = "subscribe"
	WsUnsubscribe = "unsubscribe"
)

type WsClientMessage struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
}

type WsServerEvent struct {
	Channel string `json:"channel"`
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}
