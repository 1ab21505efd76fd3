package streams

import "strings"

// Key builders for the Redis Streams/hash/set layout (spec §4 component A).
//
// candle:{sym}:{tf}               candle stream
// ind:{sym}:{tf}                  indicator snapshot stream
// ind:{sym}:{tf}:latest           latest indicator snapshot hash
// signal:{sym}:{tf}               signal stream
// bot:cfg:{bot_id}                bot config hash
// bot:state:{bot_id}              bot state hash
// bot:processed:{bot_id}          idempotency set (SADD add-if-absent)
// bot:tracked:{bot_id}            tracked-order sorted set
// sym:bots:{sym}                  symbol -> bot id index set

func CandleStreamKey(sym, tf string) string { return "candle:" + sym + ":" + tf }
func IndicatorStreamKey(sym, tf string) string { return "ind:" + sym + ":" + tf }
func IndicatorLatestKey(sym, tf string) string { return "ind:" + sym + ":" + tf + ":latest" }
func SignalStreamKey(sym, tf string) string { return "signal:" + sym + ":" + tf }
func BotConfigKey(botID string) string { return "bot:cfg:" + botID }
func BotStateKey(botID string) string { return "bot:state:" + botID }
func ProcessedSetKey(botID string) string { return "bot:processed:" + botID }
func TrackedOrdersKey(botID string) string { return "bot:tracked:" + botID }
func SymBotsIndexKey(sym string) string { return "sym:bots:" + sym }

// ParseSymTF splits a "SYM|TF" key produced by model.Candle.Key().
func ParseSymTF(key string) (sym, tf string) {
	parts := strings.SplitN(key, "|", 2)
	if len(parts) != 2 {
		return key, ""
	}
	return parts[0], parts[1]
}
