package api

const (
	// PingEndpoint is the endpoint for checking the API status
	PingEndpoint = "/ping"

	// VerifyEndpoint relays an identity disclosure proof to the registry
	VerifyEndpoint = "/verify"
	// ChallengeEndpoint returns the challenge the wallet app must answer
	UserIDURLParam    = "userId"
	ChallengeEndpoint = "/verify/challenge/{" + UserIDURLParam + "}"

	// PollsEndpoint is the endpoint to create and list polls
	PollsEndpoint = "/poll"
	// PollEndpoint is the endpoint to read, update and delete a poll
	PollURLParam = "pollId"
	PollEndpoint = "/poll/{" + PollURLParam + "}"
	// PollResultsEndpoint returns the vote distribution of a poll
	PollResultsEndpoint = PollEndpoint + "/results"

	// UsersEndpoint is the endpoint to create users and find them by wallet
	UsersEndpoint = "/user"
	// UserVerifyEndpoint sets the verification flag of the user owning a wallet
	UserVerifyEndpoint = "/user/verify"
	// UserEndpoint is the endpoint to read, update and delete a user
	UserURLParam = "id"
	UserEndpoint = "/user/{" + UserURLParam + "}"
	// WalletQueryParam is the query parameter used to find a user by wallet
	WalletQueryParam = "wallet_address"

	// ContractsEndpoint lists and creates on-chain voting contracts
	ContractsEndpoint = "/contracts"
	// ContractEndpoint returns the results of a voting contract
	ContractURLParam = "address"
	ContractEndpoint = "/contracts/{" + ContractURLParam + "}"
	// ContractVoteEndpoint casts a vote on a voting contract
	ContractVoteEndpoint = ContractEndpoint + "/vote"

	// BlacklistEndpoint sets the blacklist status of a nullifier
	BlacklistEndpoint = "/admin/blacklist"
	// BlacklistStatusEndpoint returns the blacklist status of a nullifier
	NullifierURLParam       = "nullifier"
	BlacklistStatusEndpoint = BlacklistEndpoint + "/{" + NullifierURLParam + "}"
	// AdminsEndpoint adds registry admins
	AdminsEndpoint = "/admin/admins"
	// AdminEndpoint checks or removes a registry admin
	AdminURLParam = "address"
	AdminEndpoint = AdminsEndpoint + "/{" + AdminURLParam + "}"
)
