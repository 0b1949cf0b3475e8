package topology

import "sort"

// Location carries the optional placement hints a user callback
// supplies for a process, per §3. A field value of -1 marks that hint
// absent.
type Location struct {
	SubnetID int
	NodeID   int
	SocketID int
}

// Unknown is the sentinel for an absent location field.
const Unknown = -1

// State describes a subgroup's relationship to the local process.
type State int

const (
	// Disabled means the local process is not a member.
	Disabled State = iota
	// Enabled means the local process is a member.
	Enabled
	// Unsupported means the required location info was absent.
	Unsupported
)

// Subgroup is one topology-derived vgroup: node, node-leader, socket,
// socket-leader, subnet, or subnet-leader.
type Subgroup struct {
	State State
	// Members lists the owning group's ranks belonging to this
	// subgroup, in ascending order; the subgroup's own dense rank
	// space is this slice's index.
	Members []int
	MyRank  int // index into Members, or InvalidRank if not Enabled
}

// RankMap returns an Array rank map translating this subgroup's dense
// ranks back to the owning group's rank space.
func (s *Subgroup) RankMap() RankMap {
	return NewArray(s.Members)
}

// Topology holds every subgroup a Group precomputes at create time by
// exchanging Locations through the OOB allgather.
type Topology struct {
	Node         *Subgroup
	NodeLeader   *Subgroup
	Socket       *Subgroup
	SocketLeader *Subgroup
	Subnet       *Subgroup
	SubnetLeader *Subgroup
}

// Build computes every subgroup for a group whose members' locations
// are given in group-rank order, with myRank identifying the local
// process within that same ordering.
func Build(locations []Location, myRank int) *Topology {
	return &Topology{
		Node:         peerGroup(locations, myRank, func(l Location) int { return l.NodeID }),
		NodeLeader:   leaderGroup(locations, myRank, func(l Location) int { return l.NodeID }),
		Socket:       peerGroup(locations, myRank, func(l Location) int { return l.SocketID }),
		SocketLeader: leaderGroup(locations, myRank, func(l Location) int { return l.SocketID }),
		Subnet:       peerGroup(locations, myRank, func(l Location) int { return l.SubnetID }),
		SubnetLeader: leaderGroup(locations, myRank, func(l Location) int { return l.SubnetID }),
	}
}

// peerGroup collects every rank sharing the local process's key value
// (e.g. same node-id).
func peerGroup(locations []Location, myRank int, key func(Location) int) *Subgroup {
	if myRank < 0 || myRank >= len(locations) {
		return &Subgroup{State: Unsupported, MyRank: InvalidRank}
	}
	myKey := key(locations[myRank])
	if myKey == Unknown {
		return &Subgroup{State: Unsupported, MyRank: InvalidRank}
	}

	var members []int
	for rank, loc := range locations {
		if key(loc) == myKey {
			members = append(members, rank)
		}
	}
	sort.Ints(members)

	sg := &Subgroup{State: Enabled, Members: members}
	for i, r := range members {
		if r == myRank {
			sg.MyRank = i
			return sg
		}
	}
	sg.MyRank = InvalidRank
	return sg
}

// leaderGroup collects, for every distinct key value, the
// lowest-ranked member holding it. The local process is Enabled only
// if it is itself a leader.
func leaderGroup(locations []Location, myRank int, key func(Location) int) *Subgroup {
	if myRank < 0 || myRank >= len(locations) {
		return &Subgroup{State: Unsupported, MyRank: InvalidRank}
	}
	if key(locations[myRank]) == Unknown {
		return &Subgroup{State: Unsupported, MyRank: InvalidRank}
	}

	leaderOf := make(map[int]int) // key -> lowest rank
	for rank, loc := range locations {
		k := key(loc)
		if k == Unknown {
			continue
		}
		if cur, ok := leaderOf[k]; !ok || rank < cur {
			leaderOf[k] = rank
		}
	}

	var members []int
	for _, rank := range leaderOf {
		members = append(members, rank)
	}
	sort.Ints(members)

	sg := &Subgroup{Members: members}
	for i, r := range members {
		if r == myRank {
			sg.State = Enabled
			sg.MyRank = i
			return sg
		}
	}
	sg.State = Disabled
	sg.MyRank = InvalidRank
	return sg
}
