package agent

// Operation is a cast wallet subcommand.
type Operation string

const (
	OpDecrypt Operation = "decrypt-keystore"
	OpAddress Operation = "address"
	OpImport  Operation = "import"
	OpNew     Operation = "new"
	OpVanity  Operation = "vanity"
	OpList    Operation = "list"
)

type OperationParams struct {
	// Prompts is the number of password prompts cast shows, zero for
	// operations that run without a terminal.
	Prompts int

	// Secret is true when the operation's output contains key material.
	Secret bool
}

// interactive import asks for the key, then the password. Expecting more
// prompts than cast shows would let a read that ends in "Address: " pass
// for a prompt.
var OperationMap = map[Operation]OperationParams{
	OpDecrypt: {Prompts: 1, Secret: true},
	OpAddress: {Prompts: 1},
	OpImport:  {Prompts: 2},
	OpNew:     {Secret: true},
	OpVanity:  {Secret: true},
	OpList:    {},
}

func (o Operation) Interactive() bool {
	return OperationMap[o].Prompts > 0
}
