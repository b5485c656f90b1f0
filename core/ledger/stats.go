package ledger

// Stats summarizes the chain.
type Stats struct {
	State             string         `json:"state"`
	TotalBlocks       int            `json:"totalBlocks"`
	TotalTransactions int            `json:"totalTransactions"`
	ActionCounts      map[string]int `json:"actionCounts"`
	ActorCounts       map[string]int `json:"actorCounts"`
	LatestBlockNo     uint64         `json:"latestBlockNo"`
	LatestBlockHash   string         `json:"latestBlockHash"`
	GenesisHash       string         `json:"genesisHash"`
	FirstTimestamp    string         `json:"firstTimestamp"`
	LastTimestamp     string         `json:"lastTimestamp"`
}

func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Stats{
		State:        l.state.String(),
		TotalBlocks:  len(l.chain),
		ActionCounts: make(map[string]int, len(l.idx.ByAction)),
		ActorCounts:  make(map[string]int, len(l.idx.ByActor)),
	}
	for action, nums := range l.idx.ByAction {
		s.ActionCounts[action] = len(nums)
		s.TotalTransactions += len(nums)
	}
	for actor, nums := range l.idx.ByActor {
		s.ActorCounts[actor] = len(nums)
	}
	if len(l.chain) > 0 {
		first, last := l.chain[0], l.chain[len(l.chain)-1]
		s.GenesisHash = first.BlockHash
		s.LatestBlockNo = last.BlockNo
		s.LatestBlockHash = last.BlockHash
		s.FirstTimestamp = first.Timestamp
		s.LastTimestamp = last.Timestamp
	}
	return s
}
