package gatt

import (
	"encoding/binary"

	"github.com/nabeelsameer/blegatt/att"
	"github.com/sirupsen/logrus"
)

// serviceChangedChrcID is the fixed id this package assigns the
// Service Changed characteristic within its own registration.
const serviceChangedChrcID CharacteristicID = 1

// PersistFunc lets the application store a peer's notify/indicate
// bits for Service Changed across reconnects. If absent, changes are
// only logged.
type PersistFunc func(peer att.PeerID, notify, indicate bool)

// IndicateFunc emits an indication PDU for handle to peer, supplied
// by whatever owns the AttServer serving that peer's bearer.
type IndicateFunc func(peer att.PeerID, handle att.Handle, value []byte, done func(error))

// GenericAttributeService is the built-in service described in
// spec.md §4.6: it exposes a single Service Changed characteristic
// and indicates affected handle ranges to subscribed peers whenever
// RegisterService/UnregisterService fires the service-changed
// callback, except for its own removal.
type GenericAttributeService struct {
	manager   *LocalServiceManager
	log       logrus.FieldLogger
	serviceID IdType
	indicate  IndicateFunc
	persist   PersistFunc
}

// NewGenericAttributeService registers the Service Changed service on
// manager and returns a handle usable to feed it service-changed
// events. indicate is how the service reaches attached peers; it is
// normally att.Server.SendUpdate bound to whichever bearer that peer
// is on. persist may be nil, in which case subscription changes are
// only logged.
func NewGenericAttributeService(manager *LocalServiceManager, indicate IndicateFunc, persist PersistFunc, log logrus.FieldLogger) (*GenericAttributeService, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if persist == nil {
		log.Warn("gatt: no Service Changed persistence callback installed; subscriptions will not survive reconnects")
	}

	g := &GenericAttributeService{manager: manager, log: log, indicate: indicate, persist: persist}

	decl := ServiceDecl{
		Primary: true,
		Type:    UUIDGenericAttributeService,
		Characteristics: []CharacteristicDecl{{
			ID:         serviceChangedChrcID,
			Type:       UUIDServiceChanged,
			Properties: PropertyIndicate,
			UpdateReqs: att.NewAccessRequirements(false, false, false, 0),
		}},
	}
	id, err := manager.RegisterService(decl, nil, nil, g.onCCCChange)
	if err != nil {
		return nil, err
	}
	g.serviceID = id
	return g, nil
}

// NotifyServiceChanged is the service-changed callback to install on
// the LocalServiceManager managing the rest of the host's services.
// It indicates (startHandle, endHandle) to every subscribed peer,
// except when id is this service's own (suppressing self-removal
// indications per spec.md §4.6).
func (g *GenericAttributeService) NotifyServiceChanged(id IdType, startHandle, endHandle att.Handle) {
	if id == g.serviceID {
		return
	}
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint16(payload[0:2], uint16(startHandle))
	binary.LittleEndian.PutUint16(payload[2:4], uint16(endHandle))

	for _, peer := range g.subscribedPeers() {
		peer := peer
		g.indicate(peer, g.valueHandle(), payload, func(err error) {
			if err != nil {
				g.log.WithError(err).WithField("peer", peer).Warn("gatt: Service Changed indication failed")
			}
		})
	}
}

func (g *GenericAttributeService) valueHandle() att.Handle {
	handle, _ := g.manager.ValueHandle(g.serviceID, serviceChangedChrcID)
	return handle
}

func (g *GenericAttributeService) subscribedPeers() []att.PeerID {
	svc, ok := g.manager.services[g.serviceID]
	if !ok {
		return nil
	}
	rc, ok := svc.charsByID[serviceChangedChrcID]
	if !ok {
		return nil
	}
	peers := make([]att.PeerID, 0, len(rc.ccc))
	for peer, v := range rc.ccc {
		if v&cccIndicateFlag != 0 {
			peers = append(peers, peer)
		}
	}
	return peers
}

func (g *GenericAttributeService) onCCCChange(id IdType, chrcID CharacteristicID, peer att.PeerID, notify, indicate bool) {
	if g.persist != nil {
		g.persist(peer, notify, indicate)
	} else {
		g.log.WithField("peer", peer).Warn("gatt: Service Changed subscription changed but no persistence callback is installed")
	}
}
