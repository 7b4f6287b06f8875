package eventBusTypes

import "sync"

type ConsumerId string

type Event struct {
	Name string
	Data any
}

const (
	Event_DistributionCreated = "distributionCreated"
	Event_ClaimProcessed      = "claimProcessed"
)

// ClaimProcessedData is the auditable record published for every successful
// claim.
type ClaimProcessedData struct {
	DistributionId string
	Claimant       string
	ClaimedAmount  string
	PlatformFee    string
	MaintenanceFee string
	NetAmount      string
}

type Consumer struct {
	Id      ConsumerId
	Channel chan *Event
}

type ConsumerList struct {
	consumers []*Consumer
	lock      sync.Mutex
}

func NewConsumerList() *ConsumerList {
	return &ConsumerList{
		consumers: make([]*Consumer, 0),
	}
}

func (cl *ConsumerList) Add(consumer *Consumer) {
	cl.lock.Lock()
	defer cl.lock.Unlock()
	cl.consumers = append(cl.consumers, consumer)
}

func (cl *ConsumerList) Remove(consumer *Consumer) {
	cl.lock.Lock()
	defer cl.lock.Unlock()
	filtered := make([]*Consumer, 0, len(cl.consumers))
	for _, c := range cl.consumers {
		if c.Id != consumer.Id {
			filtered = append(filtered, c)
		}
	}
	cl.consumers = filtered
}

func (cl *ConsumerList) GetAll() []*Consumer {
	cl.lock.Lock()
	defer cl.lock.Unlock()
	all := make([]*Consumer, len(cl.consumers))
	copy(all, cl.consumers)
	return all
}
