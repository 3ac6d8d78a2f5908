package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"github.com/vocdoni/arbo/memdb"
	"github.com/vocdoni/selfpoll-relay/admission"
	"github.com/vocdoni/selfpoll-relay/api"
	"github.com/vocdoni/selfpoll-relay/config"
	"github.com/vocdoni/selfpoll-relay/identity"
	"github.com/vocdoni/selfpoll-relay/log"
	"github.com/vocdoni/selfpoll-relay/service"
	"github.com/vocdoni/selfpoll-relay/storage"
	"github.com/vocdoni/selfpoll-relay/storage/sqldb"
	"github.com/vocdoni/selfpoll-relay/web3"
	"github.com/vocdoni/selfpoll-relay/web3/rpc"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
	"golang.org/x/sync/errgroup"
)

func main() {
	// an optional .env file is loaded before reading the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env file: %v\n", err)
		os.Exit(1)
	}
	conf, err := config.Load(filepath.Base(os.Args[0]), os.Args[1:], os.LookupEnv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}
	log.Init(conf.LogLevel, conf.LogOutput, nil)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := run(ctx, conf); err != nil {
		log.Fatalf("relay stopped: %v", err)
	}
	log.Info("relay stopped")
}

// openStorage returns the store selected by the configuration.
func openStorage(conf *config.Config) (storage.Store, error) {
	switch conf.DBType {
	case config.DBTypeMemory:
		return storage.New(memdb.New()), nil
	case config.DBTypePostgres:
		sdb, err := sqldb.Open(conf.DSN)
		if err != nil {
			return nil, err
		}
		return sdb, nil
	default:
		database, err := metadb.New(db.TypePebble, filepath.Join(conf.DataDir, "storage"))
		if err != nil {
			return nil, err
		}
		return storage.New(database), nil
	}
}

// identityVerifier builds the challenge verifier. It returns nil if the
// identity options are not configured.
func identityVerifier(conf *config.Config) (identity.IdentityVerifier, error) {
	v, err := identity.New(identity.Config{
		AppName:  conf.IdentityAppName,
		Scope:    conf.IdentityScope,
		Endpoint: conf.IdentityEndpoint,
		Disclosures: identity.Disclosures{
			MinimumAge:        conf.IdentityMinimumAge,
			OFAC:              conf.IdentityOFAC,
			ExcludedCountries: conf.IdentityExcludedCountries,
		},
	})
	if errors.Is(err, identity.ErrUnsupported) {
		log.Warnw("identity challenges disabled", "reason", err.Error())
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func run(ctx context.Context, conf *config.Config) error {
	// validated already, it cannot fail here
	factory, err := web3.ParseAddress(conf.FactoryAddress)
	if err != nil {
		return err
	}

	store, err := openStorage(conf)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	pool := rpc.NewWeb3Pool()
	defer pool.Close()
	for _, uri := range conf.RPC {
		chainID, err := pool.AddEndpoint(uri)
		if err != nil {
			log.Warnw("failed to add web3 endpoint", "rpc", uri, "error", err)
			continue
		}
		log.Infow("web3 endpoint added", "rpc", uri, "chainId", chainID)
	}
	client, err := pool.Client()
	if err != nil {
		return err
	}

	gw, err := web3.NewGateway(ctx, client, conf.PrivateKey, &web3.GatewayConfig{
		GasPrice:            conf.GasPrice(),
		ReceiptPollInterval: conf.ReceiptPollInterval,
	})
	if err != nil {
		return fmt.Errorf("create chain gateway: %w", err)
	}
	contracts, err := web3.NewContracts(gw, factory)
	if err != nil {
		return err
	}
	log.Infow("chain gateway ready", "account", gw.Address().Hex(), "chainId", gw.ChainID(),
		"factory", factory.Hex(), "gasPrice", gw.GasPrice().String())

	verifier, err := identityVerifier(conf)
	if err != nil {
		return fmt.Errorf("identity verifier: %w", err)
	}

	monitor := service.NewContractMonitor(contracts, conf.MonitorInterval, func(addr common.Address) {
		log.Infow("voting contract found", "address", addr.Hex())
	})
	apiService := service.NewAPI(&api.APIConfig{
		Host:          conf.Host,
		Port:          conf.Port,
		Storage:       store,
		Admission:     admission.New(contracts, store, conf.ConfirmationTimeout),
		Registry:      contracts,
		Identity:      verifier,
		SessionSecret: []byte(conf.SessionSecret),
	})

	// the services are stopped in reverse order, the gateway last so the
	// in-flight admissions can complete
	services := []service.Service{gw, monitor, apiService}
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range services {
		if err := s.Start(gctx); err != nil {
			stopAll(services)
			return err
		}
	}
	g.Go(func() error {
		<-gctx.Done()
		stopAll(services)
		return nil
	})
	log.Infow("relay started", "addr", apiService.Addr().String())
	return g.Wait()
}

func stopAll(services []service.Service) {
	for i := len(services) - 1; i >= 0; i-- {
		services[i].Stop()
	}
}
