package pubsub

import (
	"bytes"
	"testing"

	"redisGo/lib/utils"
	"redisGo/redis/connection"
	"redisGo/redis/protocol"
)

func TestPublishSubscribe(t *testing.T) {
	hub := MakeHub()
	subscriber := connection.NewFakeConn()

	Subscribe(hub, subscriber, utils.ToCmdLine("news"))
	subscriber.Clean() // 丢弃订阅确认

	reply := Publish(hub, utils.ToCmdLine("news", "hello"))
	intReply, ok := reply.(*protocol.IntReply)
	if !ok || intReply.Code != 1 {
		t.Fatalf("expect 1 receiver, actually %s", string(reply.ToBytes()))
	}
	expected := protocol.MakeMultiBulkReply(utils.ToCmdLine("message", "news", "hello")).ToBytes()
	if !bytes.Equal(subscriber.Bytes(), expected) {
		t.Errorf("expect %q, actually %q", expected, subscriber.Bytes())
	}

	// 未订阅的频道收不到
	subscriber.Clean()
	Publish(hub, utils.ToCmdLine("other", "x"))
	if len(subscriber.Bytes()) > 0 {
		t.Errorf("received message from unsubscribed channel: %q", subscriber.Bytes())
	}
}

func TestUnsubscribe(t *testing.T) {
	hub := MakeHub()
	subscriber := connection.NewFakeConn()

	Subscribe(hub, subscriber, utils.ToCmdLine("news"))
	UnSubscribe(hub, subscriber, utils.ToCmdLine("news"))
	subscriber.Clean()

	reply := Publish(hub, utils.ToCmdLine("news", "hello"))
	intReply, ok := reply.(*protocol.IntReply)
	if !ok || intReply.Code != 0 {
		t.Fatalf("expect 0 receivers, actually %s", string(reply.ToBytes()))
	}
	if len(subscriber.Bytes()) > 0 {
		t.Errorf("received message after unsubscribe: %q", subscriber.Bytes())
	}
}

func TestPatternSubscribe(t *testing.T) {
	hub := MakeHub()
	subscriber := connection.NewFakeConn()

	PSubscribe(hub, subscriber, utils.ToCmdLine("news.*"))
	subscriber.Clean()

	reply := Publish(hub, utils.ToCmdLine("news.sports", "goal"))
	intReply, ok := reply.(*protocol.IntReply)
	if !ok || intReply.Code != 1 {
		t.Fatalf("expect 1 receiver, actually %s", string(reply.ToBytes()))
	}
	expected := protocol.MakeMultiBulkReply(
		utils.ToCmdLine("pmessage", "news.*", "news.sports", "goal")).ToBytes()
	if !bytes.Equal(subscriber.Bytes(), expected) {
		t.Errorf("expect %q, actually %q", expected, subscriber.Bytes())
	}

	// 不匹配的频道
	subscriber.Clean()
	Publish(hub, utils.ToCmdLine("sports", "x"))
	if len(subscriber.Bytes()) > 0 {
		t.Errorf("received message from unmatched channel: %q", subscriber.Bytes())
	}

	PUnSubscribe(hub, subscriber, utils.ToCmdLine("news.*"))
	subscriber.Clean()
	Publish(hub, utils.ToCmdLine("news.sports", "y"))
	if len(subscriber.Bytes()) > 0 {
		t.Errorf("received message after punsubscribe: %q", subscriber.Bytes())
	}
}

// 同时命中直接订阅与模式订阅时两者都收到
func TestPublishBoth(t *testing.T) {
	hub := MakeHub()
	direct := connection.NewFakeConn()
	pattern := connection.NewFakeConn()

	Subscribe(hub, direct, utils.ToCmdLine("news.tech"))
	PSubscribe(hub, pattern, utils.ToCmdLine("news.*"))
	direct.Clean()
	pattern.Clean()

	reply := Publish(hub, utils.ToCmdLine("news.tech", "m"))
	intReply, ok := reply.(*protocol.IntReply)
	if !ok || intReply.Code != 2 {
		t.Fatalf("expect 2 receivers, actually %s", string(reply.ToBytes()))
	}
	if len(direct.Bytes()) == 0 || len(pattern.Bytes()) == 0 {
		t.Error("not all subscribers received the message")
	}
}

func TestUnsubscribeAll(t *testing.T) {
	hub := MakeHub()
	subscriber := connection.NewFakeConn()

	Subscribe(hub, subscriber, utils.ToCmdLine("a", "b"))
	PSubscribe(hub, subscriber, utils.ToCmdLine("c.*"))
	UnsubscribeAll(hub, subscriber)
	subscriber.Clean()

	Publish(hub, utils.ToCmdLine("a", "x"))
	Publish(hub, utils.ToCmdLine("c.d", "y"))
	if len(subscriber.Bytes()) > 0 {
		t.Errorf("received message after unsubscribe all: %q", subscriber.Bytes())
	}
}
