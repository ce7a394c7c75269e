package mqtt

import "log"

// bufferedMsg is a serialized message held until the broker comes back.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// offlineQueue holds messages published while disconnected, oldest first.
// A retained message supersedes any retained message already queued for the
// same topic, since the broker would only keep the last one. When full the
// oldest message is dropped. RealPublisher guards it with its own mutex.
type offlineQueue struct {
	msgs     []bufferedMsg
	capacity int
	dropped  int // since last drain
}

func newOfflineQueue(capacity int) *offlineQueue {
	return &offlineQueue{capacity: capacity}
}

func (q *offlineQueue) push(msg bufferedMsg) {
	if msg.retained {
		for i, m := range q.msgs {
			if m.retained && m.topic == msg.topic {
				q.msgs = append(q.msgs[:i], q.msgs[i+1:]...)
				break
			}
		}
	}

	if len(q.msgs) >= q.capacity {
		if q.dropped == 0 {
			log.Printf("mqtt: offline queue full (%d messages), dropping oldest", q.capacity)
		}
		q.dropped++
		q.msgs = q.msgs[1:]
	}
	q.msgs = append(q.msgs, msg)
}

// drain returns the queued messages and empties the queue.
func (q *offlineQueue) drain() []bufferedMsg {
	if len(q.msgs) == 0 {
		return nil
	}
	if q.dropped > 0 {
		log.Printf("mqtt: %d messages were dropped while offline", q.dropped)
	}
	out := q.msgs
	q.msgs = nil
	q.dropped = 0
	return out
}

func (q *offlineQueue) len() int {
	return len(q.msgs)
}
