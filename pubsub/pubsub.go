package pubsub

import (
	"strconv"

	"redisGo/datastruct/list"
	"redisGo/interface/redis"
	"redisGo/lib/utils"
	"redisGo/lib/wildcard"
	"redisGo/redis/protocol"
)

var (
	_subscribe         = "subscribe"
	_unsubscribe       = "unsubscribe"
	_psubscribe        = "psubscribe"
	_punsubscribe      = "punsubscribe"
	messageBytes       = []byte("message")
	pmessageBytes      = []byte("pmessage")
	unSubscribeNothing = []byte("*3\r\n$11\r\nunsubscribe\r\n$-1\r\n:0\r\n")
)

func makeMsg(t string, channel string, code int64) []byte {
	return []byte("*3\r\n$" + strconv.FormatInt(int64(len(t)), 10) + protocol.CRLF + t + protocol.CRLF +
		"$" + strconv.FormatInt(int64(len(channel)), 10) + protocol.CRLF + channel + protocol.CRLF +
		":" + strconv.FormatInt(code, 10) + protocol.CRLF)
}

/*
 * invoker should lock channel
 * return: is new subscribed
 */
func subscribe0(hub *Hub, channel string, client redis.Connection) bool {
	client.Subscribe(channel)

	// add into hub.subs
	raw, ok := hub.subs.Get(channel)
	var subscribers *list.LinkedList
	if ok {
		subscribers, _ = raw.(*list.LinkedList)
	} else {
		subscribers = list.Make()
		hub.subs.Put(channel, subscribers)
	}
	if subscribers.Contains(func(a interface{}) bool {
		return a == client
	}) {
		return false
	}
	subscribers.Add(client)
	return true
}

/*
 * invoker should lock channel
 * return: is actually un-subscribe
 */
func unsubscribe0(hub *Hub, channel string, client redis.Connection) bool {
	client.UnSubscribe(channel)

	// remove from hub.subs
	raw, ok := hub.subs.Get(channel)
	if ok {
		subscribers, _ := raw.(*list.LinkedList)
		subscribers.RemoveAllByVal(func(a interface{}) bool {
			return utils.Equals(a, client)
		})

		if subscribers.Len() == 0 {
			// clean
			hub.subs.Remove(channel)
		}
		return true
	}
	return false
}

func psubscribe0(hub *Hub, pattern string, client redis.Connection) bool {
	client.PSubscribe(pattern)
	raw, ok := hub.psubs.Get(pattern)
	var subscribers *list.LinkedList
	if ok {
		subscribers, _ = raw.(*list.LinkedList)
	} else {
		subscribers = list.Make()
		hub.psubs.Put(pattern, subscribers)
	}
	if subscribers.Contains(func(a interface{}) bool {
		return a == client
	}) {
		return false
	}
	subscribers.Add(client)
	return true
}

func punsubscribe0(hub *Hub, pattern string, client redis.Connection) bool {
	client.PUnSubscribe(pattern)
	raw, ok := hub.psubs.Get(pattern)
	if ok {
		subscribers, _ := raw.(*list.LinkedList)
		subscribers.RemoveAllByVal(func(a interface{}) bool {
			return utils.Equals(a, client)
		})
		if subscribers.Len() == 0 {
			hub.psubs.Remove(pattern)
		}
		return true
	}
	return false
}

// Subscribe puts the given connection into the given channel
func Subscribe(hub *Hub, c redis.Connection, args [][]byte) redis.Reply {
	channels := make([]string, len(args))
	for i, b := range args {
		channels[i] = string(b)
	}

	hub.subsLocker.Locks(channels...)
	defer hub.subsLocker.UnLocks(channels...)

	for _, channel := range channels {
		if subscribe0(hub, channel, c) {
			_, _ = c.Write(makeMsg(_subscribe, channel, int64(c.SubsCount())))
		}
	}
	return &protocol.NoReply{}
}

// UnsubscribeAll removes the given connection from all subscribed channels and patterns
func UnsubscribeAll(hub *Hub, c redis.Connection) {
	channels := c.GetChannels()
	hub.subsLocker.Locks(channels...)
	for _, channel := range channels {
		unsubscribe0(hub, channel, c)
	}
	hub.subsLocker.UnLocks(channels...)

	patterns := c.GetPatterns()
	hub.subsLocker.Locks(patterns...)
	for _, pattern := range patterns {
		punsubscribe0(hub, pattern, c)
	}
	hub.subsLocker.UnLocks(patterns...)
}

// UnSubscribe removes the given connection from the given channel
func UnSubscribe(hub *Hub, c redis.Connection, args [][]byte) redis.Reply {
	var channels []string
	if len(args) > 0 {
		channels = make([]string, len(args))
		for i, b := range args {
			channels[i] = string(b)
		}
	} else {
		channels = c.GetChannels()
	}

	hub.subsLocker.Locks(channels...)
	defer hub.subsLocker.UnLocks(channels...)

	if len(channels) == 0 {
		_, _ = c.Write(unSubscribeNothing)
		return &protocol.NoReply{}
	}

	for _, channel := range channels {
		if unsubscribe0(hub, channel, c) {
			_, _ = c.Write(makeMsg(_unsubscribe, channel, int64(c.SubsCount())))
		}
	}
	return &protocol.NoReply{}
}

// PSubscribe puts the given connection into the given patterns
func PSubscribe(hub *Hub, c redis.Connection, args [][]byte) redis.Reply {
	patterns := make([]string, len(args))
	for i, b := range args {
		patterns[i] = string(b)
	}

	hub.subsLocker.Locks(patterns...)
	defer hub.subsLocker.UnLocks(patterns...)

	for _, pattern := range patterns {
		if psubscribe0(hub, pattern, c) {
			_, _ = c.Write(makeMsg(_psubscribe, pattern, int64(len(c.GetPatterns()))))
		}
	}
	return &protocol.NoReply{}
}

// PUnSubscribe removes the given connection from the given patterns
func PUnSubscribe(hub *Hub, c redis.Connection, args [][]byte) redis.Reply {
	var patterns []string
	if len(args) > 0 {
		patterns = make([]string, len(args))
		for i, b := range args {
			patterns[i] = string(b)
		}
	} else {
		patterns = c.GetPatterns()
	}

	hub.subsLocker.Locks(patterns...)
	defer hub.subsLocker.UnLocks(patterns...)

	for _, pattern := range patterns {
		if punsubscribe0(hub, pattern, c) {
			_, _ = c.Write(makeMsg(_punsubscribe, pattern, int64(len(c.GetPatterns()))))
		}
	}
	return &protocol.NoReply{}
}

// Publish 把消息发送给频道的直接订阅者以及匹配的模式订阅者
func Publish(hub *Hub, args [][]byte) redis.Reply {
	if len(args) != 2 {
		return &protocol.ArgNumErrReply{Cmd: "publish"}
	}
	channel := string(args[0])
	message := args[1]

	receiverCount := 0

	hub.subsLocker.Lock(channel)
	raw, ok := hub.subs.Get(channel)
	if ok {
		subscribers, _ := raw.(*list.LinkedList)
		subscribers.ForEach(func(i int, c interface{}) bool {
			client, _ := c.(redis.Connection)
			replyArgs := make([][]byte, 3)
			replyArgs[0] = messageBytes
			replyArgs[1] = []byte(channel)
			replyArgs[2] = message
			_, _ = client.Write(protocol.MakeMultiBulkReply(replyArgs).ToBytes())
			receiverCount++
			return true
		})
	}
	hub.subsLocker.UnLock(channel)

	// 模式订阅者逐个匹配
	hub.psubs.ForEach(func(pattern string, raw interface{}) bool {
		matcher := wildcard.CompilePattern(pattern)
		if !matcher.IsMatch(channel) {
			return true
		}
		hub.subsLocker.Lock(pattern)
		subscribers, _ := raw.(*list.LinkedList)
		subscribers.ForEach(func(i int, c interface{}) bool {
			client, _ := c.(redis.Connection)
			replyArgs := make([][]byte, 4)
			replyArgs[0] = pmessageBytes
			replyArgs[1] = []byte(pattern)
			replyArgs[2] = []byte(channel)
			replyArgs[3] = message
			_, _ = client.Write(protocol.MakeMultiBulkReply(replyArgs).ToBytes())
			receiverCount++
			return true
		})
		hub.subsLocker.UnLock(pattern)
		return true
	})

	return protocol.MakeIntReply(int64(receiverCount))
}
