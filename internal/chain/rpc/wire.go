package rpc

// Request and response bodies of the node's REST RPC. Field names follow
// the node's JSON exactly; hex values arrive as strings.

type emptyRequest struct{}

type heightRequest struct {
	Height uint32 `json:"Height"`
}

type txHashRequest struct {
	TxHash string `json:"TxHash"`
}

type blockNumberResponse struct {
	BlockHeight uint32 `json:"BlockHeight"`
}

type blockHeaderResponse struct {
	BlockHeader *wireBlockHeader `json:"BlockHeader"`
}

type wireBlockHeader struct {
	BClaims  wireBClaims `json:"BClaims"`
	SigGroup string      `json:"SigGroup"`
	TxHshLst []string    `json:"TxHshLst"`
}

type wireBClaims struct {
	ChainID    uint32 `json:"ChainID"`
	Height     uint32 `json:"Height"`
	TxCount    uint32 `json:"TxCount"`
	PrevBlock  string `json:"PrevBlock"`
	TxRoot     string `json:"TxRoot"`
	StateRoot  string `json:"StateRoot"`
	HeaderRoot string `json:"HeaderRoot"`
}

type minedTxResponse struct {
	Tx *wireTx `json:"Tx"`
}

type wireTx struct {
	Vin  []wireTxIn `json:"Vin"`
	Vout []wireVout `json:"Vout"`
	Fee  string     `json:"Fee"`
}

type wireTxIn struct {
	TXInLinker struct {
		TXInPreImage struct {
			ChainID        uint32 `json:"ChainID"`
			ConsumedTxIdx  uint32 `json:"ConsumedTxIdx"`
			ConsumedTxHash string `json:"ConsumedTxHash"`
		} `json:"TXInPreImage"`
		TxHash string `json:"TxHash"`
	} `json:"TXInLinker"`
	Signature string `json:"Signature"`
}

type wireVout struct {
	ValueStore *wireValueStore `json:"ValueStore,omitempty"`
	DataStore  *wireDataStore  `json:"DataStore,omitempty"`
	AtomicSwap *struct{}       `json:"AtomicSwap,omitempty"`
}

type wireValueStore struct {
	VSPreImage struct {
		ChainID  uint32 `json:"ChainID"`
		Value    string `json:"Value"`
		TXOutIdx uint32 `json:"TXOutIdx"`
		Owner    string `json:"Owner"`
		Fee      string `json:"Fee"`
	} `json:"VSPreImage"`
	TxHash string `json:"TxHash"`
}

type wireDataStore struct {
	DSLinker struct {
		DSPreImage struct {
			ChainID  uint32 `json:"ChainID"`
			Index    string `json:"Index"`
			IssuedAt uint32 `json:"IssuedAt"`
			Deposit  string `json:"Deposit"`
			RawData  string `json:"RawData"`
			TXOutIdx uint32 `json:"TXOutIdx"`
			Owner    string `json:"Owner"`
			Fee      string `json:"Fee"`
		} `json:"DSPreImage"`
		TxHash string `json:"TxHash"`
	} `json:"DSLinker"`
	Signature string `json:"Signature"`
}

type valueForOwnerRequest struct {
	CurveSpec       uint8  `json:"CurveSpec"`
	Account         string `json:"Account"`
	Minvalue        string `json:"Minvalue"`
	PaginationToken string `json:"PaginationToken,omitempty"`
}

type valueForOwnerResponse struct {
	UTXOIDs         []string `json:"UTXOIDs"`
	TotalValue      string   `json:"TotalValue"`
	PaginationToken string   `json:"PaginationToken"`
}

type utxoRequest struct {
	UTXOIDs []string `json:"UTXOIDs"`
}

type utxoResponse struct {
	UTXOs []wireVout `json:"UTXOs"`
}

type nameSpaceRequest struct {
	CurveSpec  uint8  `json:"CurveSpec"`
	Account    string `json:"Account"`
	Number     int    `json:"Number"`
	StartIndex string `json:"StartIndex,omitempty"`
}

type nameSpaceResponse struct {
	Results []struct {
		UTXOID string `json:"UTXOID"`
		Index  string `json:"Index"`
	} `json:"Results"`
}

// errorResponse is the body the node returns alongside non-2xx statuses.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}
