////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

// This is a comprehensive list of CLI flag name constants. Organized by
// subcommand, with root level CLI flags at the top of the list. Pulling flags
// using Viper should use the constants defined here.
const (
	//////////////// Root flags ///////////////////////////////////////////////

	// Config and logging
	configFlag     = "config"
	logLevelFlag   = "logLevel"
	logFlag        = "log"
	profileCpuFlag = "profile-cpu"
	paramsFlag     = "params"

	// Local storage
	sessionFlag         = "session"
	sessionPasswordFlag = "sessionPassword"

	// Account
	emailFlag    = "email"
	passwordFlag = "password"

	// Backends
	redisFlag          = "redis"
	redisNamespaceFlag = "redisNamespace"
	natsFlag           = "nats"
	natsSubjectFlag    = "natsSubject"
	gcsBucketFlag      = "gcsBucket"
	gcsCredentialsFlag = "gcsCredentials"
	gcsEndpointFlag    = "gcsEndpoint"

	///////////////// Signup subcommand flags /////////////////////////////////
	usernameFlag  = "username"
	firstNameFlag = "firstName"
	lastNameFlag  = "lastName"

	///////////////// Send subcommand flags ///////////////////////////////////
	imageFlag = "image"

	///////////////// Listen subcommand flags /////////////////////////////////
	historyFlag = "history"
)
